package command

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// CustomStore is the slice of the persistence gateway the registry needs for
// custom commands. The store package's backends satisfy it.
type CustomStore interface {
	LoadCustomCommands(ctx context.Context, channelID string) (map[string]CustomCommand, error)
	SaveCustomCommand(ctx context.Context, cmd CustomCommand) error
	DeleteCustomCommand(ctx context.Context, channelID, name string) (bool, error)
}

// Resolution is the outcome of a registry lookup. At most one of Static and
// Custom is set; both nil means the name is unknown for that channel.
type Resolution struct {
	Static *Command
	Custom *CustomCommand
}

// Registry holds the static command set and a per-channel cache of custom
// commands. Static registration happens once at startup; custom commands
// change at runtime and are persisted through the CustomStore.
//
// Lookups for the same name always prefer the static command, so a custom
// command can never shadow a reserved name even if a stale row exists.
type Registry struct {
	customs  CustomStore
	cacheTTL time.Duration
	now      func() time.Time

	mu     sync.RWMutex
	static map[string]*Command
	cache  map[string]*channelCache
}

type channelCache struct {
	loadedAt time.Time
	cmds     map[string]CustomCommand
}

// NewRegistry creates a registry backed by the given custom command store.
// cacheTTL bounds how stale a channel's cached custom commands may get when
// another process writes to the same store; writes through this registry
// invalidate the channel immediately.
func NewRegistry(customs CustomStore, cacheTTL time.Duration) *Registry {
	return &Registry{
		customs:  customs,
		cacheTTL: cacheTTL,
		now:      time.Now,
		static:   make(map[string]*Command),
		cache:    make(map[string]*channelCache),
	}
}

// RegisterStatic adds a static command. Names are folded to lowercase.
// A second registration of the same name is a hard error, never an
// overwrite, so registration order cannot silently decide behavior.
func (r *Registry) RegisterStatic(cmd *Command) error {
	name := strings.ToLower(cmd.Name)
	if name == "" {
		return fmt.Errorf("register %q: empty command name", cmd.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.static[name]; exists {
		return fmt.Errorf("register %q: %w", name, ErrDuplicateCommand)
	}
	c := *cmd
	c.Name = name
	r.static[name] = &c
	return nil
}

// StaticCommands returns the registered static commands, for help output.
func (r *Registry) StaticCommands() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Command, 0, len(r.static))
	for _, c := range r.static {
		out = append(out, c)
	}
	return out
}

// Resolve looks up name for a channel: static first, then the channel's
// custom commands. A store failure on a cache miss is returned so the
// dispatcher can log it distinctly; callers treat it as unavailable, not
// as unknown.
func (r *Registry) Resolve(ctx context.Context, channelID, name string) (Resolution, error) {
	name = strings.ToLower(name)
	r.mu.RLock()
	c, ok := r.static[name]
	r.mu.RUnlock()
	if ok {
		return Resolution{Static: c}, nil
	}
	cmds, err := r.channelCustoms(ctx, channelID)
	if err != nil {
		return Resolution{}, err
	}
	if cc, ok := cmds[name]; ok {
		return Resolution{Custom: &cc}, nil
	}
	return Resolution{}, nil
}

// UpsertCustom creates or overwrites a channel custom command. Names that
// collide with a static command fail fast with ErrReservedName.
func (r *Registry) UpsertCustom(ctx context.Context, channelID, name, template, author string, cooldown time.Duration) error {
	name = strings.ToLower(name)
	r.mu.RLock()
	_, reserved := r.static[name]
	r.mu.RUnlock()
	if reserved {
		return fmt.Errorf("custom command %q: %w", name, ErrReservedName)
	}
	now := r.now().UTC()
	cmd := CustomCommand{
		ChannelID: channelID,
		Name:      name,
		Template:  template,
		CreatedBy: author,
		CreatedAt: now,
		UpdatedAt: now,
		Cooldown:  cooldown,
	}
	if err := r.customs.SaveCustomCommand(ctx, cmd); err != nil {
		return fmt.Errorf("save custom command %q: %w", name, err)
	}
	r.invalidate(channelID)
	return nil
}

// RemoveCustom deletes a channel custom command; it reports whether a
// record actually existed.
func (r *Registry) RemoveCustom(ctx context.Context, channelID, name string) (bool, error) {
	name = strings.ToLower(name)
	deleted, err := r.customs.DeleteCustomCommand(ctx, channelID, name)
	if err != nil {
		return false, fmt.Errorf("delete custom command %q: %w", name, err)
	}
	if deleted {
		r.invalidate(channelID)
	}
	return deleted, nil
}

// CustomCommands returns the channel's custom commands (cached), for help
// output and the commands listing.
func (r *Registry) CustomCommands(ctx context.Context, channelID string) (map[string]CustomCommand, error) {
	return r.channelCustoms(ctx, channelID)
}

func (r *Registry) channelCustoms(ctx context.Context, channelID string) (map[string]CustomCommand, error) {
	r.mu.RLock()
	entry, ok := r.cache[channelID]
	r.mu.RUnlock()
	if ok && r.now().Sub(entry.loadedAt) < r.cacheTTL {
		return entry.cmds, nil
	}
	cmds, err := r.customs.LoadCustomCommands(ctx, channelID)
	if err != nil {
		// Serve the stale entry rather than failing the lookup outright.
		if ok {
			return entry.cmds, nil
		}
		return nil, fmt.Errorf("load custom commands for %s: %w", channelID, err)
	}
	r.mu.Lock()
	r.cache[channelID] = &channelCache{loadedAt: r.now(), cmds: cmds}
	r.mu.Unlock()
	return cmds, nil
}

func (r *Registry) invalidate(channelID string) {
	r.mu.Lock()
	delete(r.cache, channelID)
	r.mu.Unlock()
}
