// Package file implements storage.TokenStore on a flat file, one token per
// line: mint,decimals[,symbol]. The whole file is rewritten atomically on
// every mutation via a temp file and rename.
package file

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"solana-buybot/internal/domain"
	"solana-buybot/internal/storage"
)

// TokenStore is a flat-file implementation of storage.TokenStore.
type TokenStore struct {
	path string
	mu   sync.Mutex
}

// NewTokenStore creates a token store backed by the file at path. The file
// is created on first mutation; a missing file reads as an empty set.
func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

// Insert adds a new tracked token. Returns ErrDuplicateKey if the mint is
// already tracked.
func (s *TokenStore) Insert(_ context.Context, t *domain.TrackedToken) error {
	if t == nil || t.Mint == "" {
		return storage.ErrInvalidInput
	}
	if strings.ContainsAny(t.Mint, ",\n") {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, err := s.load()
	if err != nil {
		return err
	}

	for _, existing := range tokens {
		if existing.Mint == t.Mint {
			return storage.ErrDuplicateKey
		}
	}

	tokenCopy := *t
	tokens = append(tokens, &tokenCopy)
	return s.save(tokens)
}

// Delete removes a tracked token. Returns ErrNotFound if the mint is not
// tracked.
func (s *TokenStore) Delete(_ context.Context, mint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, err := s.load()
	if err != nil {
		return err
	}

	kept := tokens[:0]
	found := false
	for _, t := range tokens {
		if t.Mint == mint {
			found = true
			continue
		}
		kept = append(kept, t)
	}
	if !found {
		return storage.ErrNotFound
	}

	return s.save(kept)
}

// GetByMint retrieves a tracked token. Returns ErrNotFound if not exists.
func (s *TokenStore) GetByMint(_ context.Context, mint string) (*domain.TrackedToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, err := s.load()
	if err != nil {
		return nil, err
	}

	for _, t := range tokens {
		if t.Mint == mint {
			return t, nil
		}
	}
	return nil, storage.ErrNotFound
}

// List retrieves all tracked tokens ordered by mint ASC.
func (s *TokenStore) List(_ context.Context) ([]*domain.TrackedToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, err := s.load()
	if err != nil {
		return nil, err
	}

	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].Mint < tokens[j].Mint
	})
	return tokens, nil
}

// load reads and parses the backing file. Callers hold s.mu.
func (s *TokenStore) load() ([]*domain.TrackedToken, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()

	var tokens []*domain.TrackedToken
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) < 2 {
			return nil, fmt.Errorf("token file line %d: expected mint,decimals", lineNo)
		}

		decimals, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil || decimals < 0 {
			return nil, fmt.Errorf("token file line %d: bad decimals %q", lineNo, fields[1])
		}

		t := &domain.TrackedToken{
			Mint:     strings.TrimSpace(fields[0]),
			Decimals: decimals,
		}
		if len(fields) >= 3 {
			if symbol := strings.TrimSpace(fields[2]); symbol != "" {
				t.Symbol = &symbol
			}
		}
		tokens = append(tokens, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}

	return tokens, nil
}

// save writes all tokens to a temp file and renames it over the backing
// file. Callers hold s.mu.
func (s *TokenStore) save(tokens []*domain.TrackedToken) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".tokens-*")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	tmpPath := tmp.Name()

	w := bufio.NewWriter(tmp)
	for _, t := range tokens {
		line := fmt.Sprintf("%s,%d", t.Mint, t.Decimals)
		if t.Symbol != nil && *t.Symbol != "" {
			line += "," + *t.Symbol
		}
		if _, err := w.WriteString(line + "\n"); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("write token file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("flush token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close token file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}

// Verify interface compliance at compile time.
var _ storage.TokenStore = (*TokenStore)(nil)
