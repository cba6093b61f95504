// Package storage はブラウザのlocalStorageに相当する永続キーバリューストアを提供する。
// プロセス再起動をまたいでベアラトークンと登録セッションの締切を保持する。
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// 固定ストレージキー。SPA時代のlocalStorageキーをそのまま引き継ぐ。
const (
	// KeyToken はベアラトークンの保存キー。
	KeyToken = "token"
	// KeyRegistrationEndTime は登録セッション締切（RFC 3339）の保存キー。
	KeyRegistrationEndTime = "registrationEndTime"
	// KeyRegistrationID はバックエンド採番の登録セッションIDの保存キー。
	KeyRegistrationID = "registrationId"
)

// stateFileName はステートファイル名。StateDir直下に置く。
const stateFileName = "state.json"

// Store は永続キーバリューストアのインターフェース。
type Store interface {
	// Get はキーに対応する値を返す。未設定の場合は空文字列を返す。
	Get(key string) string
	// Set はキーに値を保存する。
	Set(key, value string) error
	// Remove はキーを削除する。未設定のキーに対しても安全に呼べる。
	Remove(key string) error
}

// FileStore は単一JSONファイルに全キーを保存するStore実装。
// 書き込みは一時ファイルへの書き出しとrenameで原子的に行う。
type FileStore struct {
	mu     sync.Mutex
	path   string
	values map[string]string
}

// NewFileStore はdir配下のステートファイルを読み込んでFileStoreを生成する。
// ディレクトリとファイルが存在しない場合は空の状態で開始する。
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	s := &FileStore{
		path:   filepath.Join(dir, stateFileName),
		values: make(map[string]string),
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.values); err != nil {
			// 壊れたステートファイルは空として扱い、次回の書き込みで上書きする
			s.values = make(map[string]string)
		}
	}

	return s, nil
}

// Get はキーに対応する値を返す。未設定の場合は空文字列を返す。
func (s *FileStore) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

// Set はキーに値を保存し、ファイルに書き出す。
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return s.flushLocked()
}

// Remove はキーを削除し、ファイルに書き出す。
func (s *FileStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.flushLocked()
}

// flushLocked は現在の状態を一時ファイルに書き出してからrenameする。
// 呼び出し側でロックを保持していること。
func (s *FileStore) flushLocked() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// MemoryStore はテスト用のインメモリStore実装。
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get はキーに対応する値を返す。
func (s *MemoryStore) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

// Set はキーに値を保存する。
func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Remove はキーを削除する。
func (s *MemoryStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
