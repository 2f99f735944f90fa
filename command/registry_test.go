package command

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeCustomStore is an in-memory CustomStore that counts loads so cache
// behavior is observable.
type fakeCustomStore struct {
	cmds   map[string]map[string]CustomCommand
	loads  int
	failed bool
}

func newFakeCustomStore() *fakeCustomStore {
	return &fakeCustomStore{cmds: make(map[string]map[string]CustomCommand)}
}

func (f *fakeCustomStore) LoadCustomCommands(ctx context.Context, channelID string) (map[string]CustomCommand, error) {
	f.loads++
	if f.failed {
		return nil, errors.New("store down")
	}
	out := make(map[string]CustomCommand, len(f.cmds[channelID]))
	for k, v := range f.cmds[channelID] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeCustomStore) SaveCustomCommand(ctx context.Context, cmd CustomCommand) error {
	if f.failed {
		return errors.New("store down")
	}
	ch, ok := f.cmds[cmd.ChannelID]
	if !ok {
		ch = make(map[string]CustomCommand)
		f.cmds[cmd.ChannelID] = ch
	}
	ch[cmd.Name] = cmd
	return nil
}

func (f *fakeCustomStore) DeleteCustomCommand(ctx context.Context, channelID, name string) (bool, error) {
	if f.failed {
		return false, errors.New("store down")
	}
	if _, ok := f.cmds[channelID][name]; !ok {
		return false, nil
	}
	delete(f.cmds[channelID], name)
	return true, nil
}

func noopHandler(ctx context.Context, inv *Invocation) (*Reply, error) { return nil, nil }

func TestRegisterStaticDuplicate(t *testing.T) {
	reg := NewRegistry(newFakeCustomStore(), time.Minute)
	if err := reg.RegisterStatic(&Command{Name: "ping", Handler: noopHandler}); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	err := reg.RegisterStatic(&Command{Name: "ping", Handler: noopHandler})
	if !errors.Is(err, ErrDuplicateCommand) {
		t.Fatalf("duplicate registration error = %v, want ErrDuplicateCommand", err)
	}
	// Case-folded collision too.
	err = reg.RegisterStatic(&Command{Name: "PING", Handler: noopHandler})
	if !errors.Is(err, ErrDuplicateCommand) {
		t.Fatalf("case-folded duplicate error = %v, want ErrDuplicateCommand", err)
	}
}

func TestResolveStaticPrecedence(t *testing.T) {
	ctx := context.Background()
	fs := newFakeCustomStore()
	// A stale custom row shadowing a static name can exist in storage (e.g.
	// the static command was added in a later release). Static must win.
	fs.cmds["chan1"] = map[string]CustomCommand{
		"ping": {ChannelID: "chan1", Name: "ping", Template: "shadowed"},
	}
	reg := NewRegistry(fs, time.Minute)
	if err := reg.RegisterStatic(&Command{Name: "ping", Handler: noopHandler}); err != nil {
		t.Fatalf("register: %v", err)
	}

	res, err := reg.Resolve(ctx, "chan1", "ping")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Static == nil || res.Custom != nil {
		t.Fatalf("static command did not take precedence: %+v", res)
	}
}

func TestResolveCustomAndNotFound(t *testing.T) {
	ctx := context.Background()
	fs := newFakeCustomStore()
	fs.cmds["chan1"] = map[string]CustomCommand{
		"welcome": {ChannelID: "chan1", Name: "welcome", Template: "Welcome {username}!"},
	}
	reg := NewRegistry(fs, time.Minute)

	res, err := reg.Resolve(ctx, "chan1", "welcome")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Custom == nil || res.Custom.Template != "Welcome {username}!" {
		t.Fatalf("custom command not resolved: %+v", res)
	}

	res, err = reg.Resolve(ctx, "chan1", "nothere")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Static != nil || res.Custom != nil {
		t.Fatalf("unknown name resolved to %+v", res)
	}

	// Another channel does not see chan1's commands.
	res, err = reg.Resolve(ctx, "chan2", "welcome")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Custom != nil {
		t.Fatal("custom command leaked across channels")
	}
}

func TestUpsertCustomReservedName(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(newFakeCustomStore(), time.Minute)
	if err := reg.RegisterStatic(&Command{Name: "ping", Handler: noopHandler}); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := reg.UpsertCustom(ctx, "chan1", "ping", "nope", "mod1", 0)
	if !errors.Is(err, ErrReservedName) {
		t.Fatalf("upsert of reserved name error = %v, want ErrReservedName", err)
	}
	// Case-folded too.
	err = reg.UpsertCustom(ctx, "chan1", "PING", "nope", "mod1", 0)
	if !errors.Is(err, ErrReservedName) {
		t.Fatalf("case-folded reserved name error = %v, want ErrReservedName", err)
	}
}

func TestCustomCacheInvalidateOnWrite(t *testing.T) {
	ctx := context.Background()
	fs := newFakeCustomStore()
	reg := NewRegistry(fs, time.Hour)

	if _, err := reg.Resolve(ctx, "chan1", "hello"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := reg.Resolve(ctx, "chan1", "hello"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if fs.loads != 1 {
		t.Fatalf("loads = %d, want 1 (second resolve should hit cache)", fs.loads)
	}

	if err := reg.UpsertCustom(ctx, "chan1", "hello", "Hi {username}", "mod1", 0); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	res, err := reg.Resolve(ctx, "chan1", "hello")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Custom == nil {
		t.Fatal("upserted command not visible after cache invalidation")
	}
	if fs.loads != 2 {
		t.Fatalf("loads = %d, want 2 (write should invalidate cache)", fs.loads)
	}

	deleted, err := reg.RemoveCustom(ctx, "chan1", "hello")
	if err != nil || !deleted {
		t.Fatalf("remove = (%v, %v), want (true, nil)", deleted, err)
	}
	res, err = reg.Resolve(ctx, "chan1", "hello")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Custom != nil {
		t.Fatal("deleted command still resolvable")
	}

	deleted, err = reg.RemoveCustom(ctx, "chan1", "hello")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if deleted {
		t.Fatal("second delete reported true")
	}
}

func TestCustomCacheTTLExpiry(t *testing.T) {
	ctx := context.Background()
	fs := newFakeCustomStore()
	reg := NewRegistry(fs, time.Minute)
	now := time.Unix(1000, 0)
	reg.now = func() time.Time { return now }

	if _, err := reg.Resolve(ctx, "chan1", "x"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	now = now.Add(30 * time.Second)
	if _, err := reg.Resolve(ctx, "chan1", "x"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if fs.loads != 1 {
		t.Fatalf("loads = %d, want 1 before TTL", fs.loads)
	}
	now = now.Add(31 * time.Second)
	if _, err := reg.Resolve(ctx, "chan1", "x"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if fs.loads != 2 {
		t.Fatalf("loads = %d, want 2 after TTL", fs.loads)
	}
}

func TestResolveServesStaleOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	fs := newFakeCustomStore()
	fs.cmds["chan1"] = map[string]CustomCommand{
		"hi": {ChannelID: "chan1", Name: "hi", Template: "hi"},
	}
	reg := NewRegistry(fs, time.Minute)
	now := time.Unix(1000, 0)
	reg.now = func() time.Time { return now }

	if _, err := reg.Resolve(ctx, "chan1", "hi"); err != nil {
		t.Fatalf("warm-up resolve: %v", err)
	}

	fs.failed = true
	now = now.Add(2 * time.Minute)
	res, err := reg.Resolve(ctx, "chan1", "hi")
	if err != nil {
		t.Fatalf("resolve with stale cache: %v", err)
	}
	if res.Custom == nil {
		t.Fatal("stale cache entry not served during store outage")
	}

	// A channel with no cached entry surfaces the error.
	if _, err := reg.Resolve(ctx, "chan2", "hi"); err == nil {
		t.Fatal("expected error for uncached channel during store outage")
	}
}
