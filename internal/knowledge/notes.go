// Package knowledge manages free-text notes (memories) attached to
// files and symbols, and folds them into analysis results.
package knowledge

import (
	"github.com/spectra-g/engram/internal/store"
	"github.com/spectra-g/engram/internal/types"
)

// AddNote records a note for a file, optionally scoped to a symbol.
func AddNote(st *store.Store, filePath string, symbolName *string, content string) (types.AddNoteResponse, error) {
	id, err := st.AddMemory(filePath, symbolName, content)
	if err != nil {
		return types.AddNoteResponse{}, err
	}
	return types.AddNoteResponse{
		ID:       id,
		FilePath: filePath,
		Content:  content,
	}, nil
}

// SearchNotes returns notes matching a substring of their content or
// file path.
func SearchNotes(st *store.Store, query string) (types.SearchNotesResponse, error) {
	memories, err := st.SearchMemories(query)
	if err != nil {
		return types.SearchNotesResponse{}, err
	}
	return types.SearchNotesResponse{
		Query:    query,
		Memories: memories,
	}, nil
}

// ListNotes returns all notes, optionally filtered to one file.
func ListNotes(st *store.Store, filePath *string) (types.ListNotesResponse, error) {
	memories, err := st.ListMemories(filePath)
	if err != nil {
		return types.ListNotesResponse{}, err
	}
	return types.ListNotesResponse{
		FilePath: filePath,
		Memories: memories,
	}, nil
}

// EnrichWithMemories attaches stored notes to each coupled file.
// Lookup errors leave the entry un-enriched.
func EnrichWithMemories(st *store.Store, coupledFiles []types.CoupledFile) {
	for i := range coupledFiles {
		memories, err := st.MemoriesForFile(coupledFiles[i].Path)
		if err != nil || len(memories) == 0 {
			continue
		}
		coupledFiles[i].Memories = memories
	}
}
