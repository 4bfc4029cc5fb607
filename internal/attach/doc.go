// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package attach manages the set of files queued for the next outgoing chat
// turn and their server-side text extraction.
//
// The set is ordered and unique by position: two files with the same name
// may both be queued. Whenever an entry is removed, the native selection
// handle is rebuilt to mirror the set exactly, because no native file-list
// API permits partial mutation. Extraction is re-run over the entire set on
// every change; attachments are expected to be few and small, so simplicity
// wins over efficiency here.
//
// Extraction is fail-closed: if the extraction call fails, the whole set is
// reset and the user is alerted. A turn never references files whose text
// could not be extracted.
package attach
