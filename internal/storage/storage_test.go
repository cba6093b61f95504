package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileStore_SetGetRemove(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore がエラーを返した: %v", err)
	}

	if got := s.Get(KeyToken); got != "" {
		t.Errorf("未設定キーの Get = %q, want 空文字列", got)
	}

	if err := s.Set(KeyToken, "abc123"); err != nil {
		t.Fatalf("Set がエラーを返した: %v", err)
	}
	if got := s.Get(KeyToken); got != "abc123" {
		t.Errorf("Get = %q, want abc123", got)
	}

	if err := s.Remove(KeyToken); err != nil {
		t.Fatalf("Remove がエラーを返した: %v", err)
	}
	if got := s.Get(KeyToken); got != "" {
		t.Errorf("Remove 後の Get = %q, want 空文字列", got)
	}
}

func TestFileStore_RemoveMissingKeyIsNoop(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore がエラーを返した: %v", err)
	}

	if err := s.Remove("nonexistent"); err != nil {
		t.Errorf("未設定キーの Remove はエラーを返すべきでない: %v", err)
	}
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	s1, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore がエラーを返した: %v", err)
	}
	if err := s1.Set(KeyRegistrationEndTime, "2026-01-01T00:00:00Z"); err != nil {
		t.Fatalf("Set がエラーを返した: %v", err)
	}
	if err := s1.Set(KeyRegistrationID, "42"); err != nil {
		t.Fatalf("Set がエラーを返した: %v", err)
	}

	// プロセス再起動に相当: 同じディレクトリから新しいインスタンスを開く
	s2, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("2度目の NewFileStore がエラーを返した: %v", err)
	}
	if got := s2.Get(KeyRegistrationEndTime); got != "2026-01-01T00:00:00Z" {
		t.Errorf("復元された registrationEndTime = %q, want 2026-01-01T00:00:00Z", got)
	}
	if got := s2.Get(KeyRegistrationID); got != "42" {
		t.Errorf("復元された registrationId = %q, want 42", got)
	}
}

func TestFileStore_CorruptFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, stateFileName), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("ステートファイルの準備に失敗した: %v", err)
	}

	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("壊れたファイルでも NewFileStore は成功すべき: %v", err)
	}
	if got := s.Get(KeyToken); got != "" {
		t.Errorf("壊れたファイルからの Get = %q, want 空文字列", got)
	}

	// 書き込みで上書き復旧できる
	if err := s.Set(KeyToken, "fresh"); err != nil {
		t.Fatalf("Set がエラーを返した: %v", err)
	}
	s2, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore がエラーを返した: %v", err)
	}
	if got := s2.Get(KeyToken); got != "fresh" {
		t.Errorf("復旧後の Get = %q, want fresh", got)
	}
}

func TestMemoryStore_SetGetRemove(t *testing.T) {
	s := NewMemoryStore()

	if err := s.Set("key", "value"); err != nil {
		t.Fatalf("Set がエラーを返した: %v", err)
	}
	if got := s.Get("key"); got != "value" {
		t.Errorf("Get = %q, want value", got)
	}
	if err := s.Remove("key"); err != nil {
		t.Fatalf("Remove がエラーを返した: %v", err)
	}
	if got := s.Get("key"); got != "" {
		t.Errorf("Remove 後の Get = %q, want 空文字列", got)
	}
}
