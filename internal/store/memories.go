package store

import (
	"database/sql"

	"github.com/spectra-g/engram/internal/types"
)

// AddMemory records a note for a file, optionally scoped to a symbol,
// and returns the new row id.
func (s *Store) AddMemory(filePath string, symbolName *string, content string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO memories (file_path, symbol_name, content) VALUES (?, ?, ?)`,
		filePath, symbolName, content,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// MemoriesForFile returns all notes for a file, newest first.
func (s *Store) MemoriesForFile(filePath string) ([]types.Memory, error) {
	return s.queryMemories(
		`SELECT id, file_path, symbol_name, content, created_at
		 FROM memories WHERE file_path = ? ORDER BY created_at DESC, id DESC`,
		filePath,
	)
}

// SearchMemories returns notes whose content or file path contains
// the query substring, newest first.
func (s *Store) SearchMemories(query string) ([]types.Memory, error) {
	pattern := "%" + query + "%"
	return s.queryMemories(
		`SELECT id, file_path, symbol_name, content, created_at
		 FROM memories
		 WHERE content LIKE ?1 OR file_path LIKE ?1
		 ORDER BY created_at DESC, id DESC`,
		pattern,
	)
}

// ListMemories returns all notes, optionally filtered to one file.
func (s *Store) ListMemories(filePath *string) ([]types.Memory, error) {
	if filePath != nil {
		return s.MemoriesForFile(*filePath)
	}
	return s.queryMemories(
		`SELECT id, file_path, symbol_name, content, created_at
		 FROM memories ORDER BY created_at DESC, id DESC`,
	)
}

func (s *Store) queryMemories(query string, args ...any) ([]types.Memory, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []types.Memory{}
	for rows.Next() {
		var (
			m      types.Memory
			symbol sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.FilePath, &symbol, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		if symbol.Valid {
			m.SymbolName = &symbol.String
		}
		result = append(result, m)
	}
	return result, rows.Err()
}
