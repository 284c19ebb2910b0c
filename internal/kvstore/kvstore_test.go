package kvstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestMemory_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, ok, err := m.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("存在しないキーは (false, nil) であるべき, got ok=%v err=%v", ok, err)
	}

	if err := m.Set(ctx, "k", []byte("[1,2]")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	v, ok, err := m.Get(ctx, "k")
	if err != nil || !ok || string(v) != "[1,2]" {
		t.Fatalf("Get = %q, %v, %v", v, ok, err)
	}

	// 返却値を書き換えても内部状態に影響しないこと
	v[0] = 'x'
	v2, _, _ := m.Get(ctx, "k")
	if string(v2) != "[1,2]" {
		t.Errorf("内部状態が書き換えられた: %q", v2)
	}

	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Error("削除後はキーが存在しないべき")
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d, want 0", m.Len())
	}
}

func TestNamespace_IsolatesDevices(t *testing.T) {
	ctx := context.Background()
	base := NewMemory()
	a := Namespace(base, DevicePrefix("device-a"))
	b := Namespace(base, DevicePrefix("device-b"))

	if err := a.Set(ctx, "compare_course_ids", []byte("[1]")); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := b.Get(ctx, "compare_course_ids"); ok {
		t.Error("別の端末のキーが見えてはならない")
	}
	raw, ok, _ := base.Get(ctx, "device:device-a:compare_course_ids")
	if !ok || string(raw) != "[1]" {
		t.Errorf("プレフィックス付きで保存されるべき, got %q ok=%v", raw, ok)
	}

	if err := b.Delete(ctx, "compare_course_ids"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := a.Get(ctx, "compare_course_ids"); !ok {
		t.Error("別の端末の削除が影響してはならない")
	}
}

// Redis統合テスト（TEST_REDIS_URLが設定されている場合のみ実行）
func TestRedis_Integration(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL is not set")
	}
	ctx := context.Background()
	store, client, err := OpenRedis(ctx, url, time.Minute)
	if err != nil {
		t.Skipf("Redis is not reachable: %v", err)
	}
	defer client.Close()

	key := "kvstore-test:" + uuid.NewString()
	defer client.Del(ctx, key)

	if _, ok, err := store.Get(ctx, key); ok || err != nil {
		t.Fatalf("存在しないキーは (false, nil) であるべき, got ok=%v err=%v", ok, err)
	}
	if err := store.Set(ctx, key, []byte(`[3]`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	v, ok, err := store.Get(ctx, key)
	if err != nil || !ok || string(v) != "[3]" {
		t.Fatalf("Get = %q, %v, %v", v, ok, err)
	}
	ttl, err := client.TTL(ctx, key).Result()
	if err != nil || ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTLが設定されるべき, got %v (%v)", ttl, err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
}

func TestOpenRedis_InvalidURL(t *testing.T) {
	_, _, err := OpenRedis(context.Background(), "://bad", 0)
	if err == nil {
		t.Fatal("不正なURLはエラーになるべき")
	}
}

func TestRedis_UnreachableReturnsErrUnavailable(t *testing.T) {
	// 接続できないアドレスに対する操作はErrUnavailableでラップされる
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	store := NewRedis(client, 0)
	ctx := context.Background()

	if _, _, err := store.Get(ctx, "k"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Get: expected ErrUnavailable, got %v", err)
	}
	if err := store.Set(ctx, "k", []byte("v")); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Set: expected ErrUnavailable, got %v", err)
	}
	if err := store.Delete(ctx, "k"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Delete: expected ErrUnavailable, got %v", err)
	}
}
