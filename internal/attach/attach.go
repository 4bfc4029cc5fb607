// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package attach manages queued chat attachments and text extraction.
package attach

import (
	"context"
	"log"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// TYPES
// =============================================================================

// File is one queued attachment: a name and its raw bytes.
type File struct {
	Name string
	Data []byte
}

// FileList abstracts the native file-selection handle. Implementations must
// replace their contents wholesale; the pipeline is the only writer.
type FileList interface {
	// Replace rebuilds the handle to contain exactly these files, in order.
	Replace(files []File)
	// Clear empties the handle.
	Clear()
}

// Extractor sends files to the text-extraction collaborator and returns the
// concatenated text.
type Extractor interface {
	Extract(ctx context.Context, files []File) (string, error)
}

// MemoryList is the FileList for terminal front ends, which have no native
// selection widget; it simply mirrors the pipeline's current set.
type MemoryList struct {
	mu    sync.Mutex
	files []File
}

func (l *MemoryList) Replace(files []File) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.files = append([]File(nil), files...)
}

func (l *MemoryList) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.files = nil
}

// Files returns a copy of the mirrored set.
func (l *MemoryList) Files() []File {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]File(nil), l.files...)
}

// =============================================================================
// PIPELINE
// =============================================================================

// Pipeline owns the AttachmentSet for the next outgoing turn.
type Pipeline struct {
	list      FileList
	extractor Extractor
	logger    *log.Logger

	// onPreview refreshes the visible attachment list (may be nil).
	onPreview func(names []string)
	// onAlert surfaces a blocking extraction failure to the user (may be nil).
	onAlert func(message string)

	mu        sync.Mutex
	files     []File
	extracted string
}

// NewPipeline creates an attachment pipeline. list and extractor are
// required; onPreview and onAlert are optional UI hooks.
func NewPipeline(list FileList, extractor Extractor, onPreview func([]string), onAlert func(string), logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.New(log.Writer(), "attach: ", log.LstdFlags)
	}
	return &Pipeline{
		list:      list,
		extractor: extractor,
		onPreview: onPreview,
		onAlert:   onAlert,
		logger:    logger,
	}
}

// AddFiles appends a selection to the set, refreshes the preview, and
// re-runs extraction over the entire current set, not just the new files.
func (p *Pipeline) AddFiles(ctx context.Context, selection []File) {
	if len(selection) == 0 {
		return
	}
	p.mu.Lock()
	p.files = append(p.files, selection...)
	files := p.snapshotLocked()
	p.mu.Unlock()

	p.list.Replace(files)
	p.preview(files)
	p.extract(ctx, files)
}

// RemoveFile drops the entry at index. When the set becomes empty, all
// derived state (extracted text, preview, native handle) is cleared as a
// unit; otherwise the handle is rebuilt and extraction re-runs.
func (p *Pipeline) RemoveFile(ctx context.Context, index int) {
	p.mu.Lock()
	if index < 0 || index >= len(p.files) {
		p.mu.Unlock()
		return
	}
	p.files = append(p.files[:index], p.files[index+1:]...)
	empty := len(p.files) == 0
	if empty {
		p.extracted = ""
	}
	files := p.snapshotLocked()
	p.mu.Unlock()

	if empty {
		p.list.Clear()
		p.preview(nil)
		return
	}
	p.list.Replace(files)
	p.preview(files)
	p.extract(ctx, files)
}

// Clear empties the set after a turn is dispatched. Attachments are one-shot
// per turn; this runs regardless of the transport outcome.
func (p *Pipeline) Clear() {
	p.mu.Lock()
	p.files = nil
	p.extracted = ""
	p.mu.Unlock()

	p.list.Clear()
	p.preview(nil)
}

// extract runs the extraction collaborator over files. On success the
// normalized concatenated text is stored. On failure the pipeline fails
// closed: the set is reset and the user is alerted.
func (p *Pipeline) extract(ctx context.Context, files []File) {
	text, err := p.extractor.Extract(ctx, files)
	if err != nil {
		p.logger.Printf("extraction failed for %d file(s): %v", len(files), err)
		p.mu.Lock()
		p.files = nil
		p.extracted = ""
		p.mu.Unlock()
		p.list.Clear()
		p.preview(nil)
		if p.onAlert != nil {
			p.onAlert("Could not read the attached files. They have been removed.")
		}
		return
	}

	p.mu.Lock()
	p.extracted = norm.NFC.String(text)
	p.mu.Unlock()
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Files returns a copy of the current set, in order.
func (p *Pipeline) Files() []File {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Names returns the queued file names, in order.
func (p *Pipeline) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, len(p.files))
	for i, f := range p.files {
		names[i] = f.Name
	}
	return names
}

// ExtractedText returns the most recent successful extraction result, or ""
// if none succeeded since the set last changed to empty.
func (p *Pipeline) ExtractedText() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.extracted
}

// Empty reports whether no files are queued.
func (p *Pipeline) Empty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.files) == 0
}

func (p *Pipeline) snapshotLocked() []File {
	return append([]File(nil), p.files...)
}

func (p *Pipeline) preview(files []File) {
	if p.onPreview == nil {
		return
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	p.onPreview(names)
}
