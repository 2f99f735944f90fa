package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/onnwee/botkit/command"
)

// Memory is a mutex-guarded in-process Gateway. It backs tests and
// credential-less local runs; nothing survives a restart.
type Memory struct {
	mu      sync.Mutex
	seq     int64
	points  map[string]map[string]*memAccount // channelID -> userID -> account
	customs map[string]map[string]command.CustomCommand
}

type memAccount struct {
	username string
	balance  int64
	order    int64 // insertion sequence, leaderboard tie-break
}

// NewMemory returns an empty in-memory gateway.
func NewMemory() *Memory {
	return &Memory{
		points:  make(map[string]map[string]*memAccount),
		customs: make(map[string]map[string]command.CustomCommand),
	}
}

func (m *Memory) account(channelID, userID, username string) *memAccount {
	ch, ok := m.points[channelID]
	if !ok {
		ch = make(map[string]*memAccount)
		m.points[channelID] = ch
	}
	acc, ok := ch[userID]
	if !ok {
		m.seq++
		acc = &memAccount{username: username, order: m.seq}
		ch[userID] = acc
	}
	if username != "" {
		acc.username = username
	}
	return acc
}

func (m *Memory) GetBalance(ctx context.Context, channelID, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if acc, ok := m.points[channelID][userID]; ok {
		return acc.balance, nil
	}
	return 0, nil
}

func (m *Memory) AddPoints(ctx context.Context, channelID, userID, username string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acc := m.account(channelID, userID, username)
	acc.balance += amount
	return acc.balance, nil
}

func (m *Memory) RemovePoints(ctx context.Context, channelID, userID string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.points[channelID][userID]
	if !ok {
		return 0, nil
	}
	removed := amount
	if removed > acc.balance {
		removed = acc.balance
	}
	acc.balance -= removed
	return removed, nil
}

func (m *Memory) Transfer(ctx context.Context, channelID, fromID, toID string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if fromID == toID {
		return ErrSameUser
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	from, ok := m.points[channelID][fromID]
	if !ok || from.balance < amount {
		return ErrInsufficientFunds
	}
	to := m.account(channelID, toID, "")
	if to.username == "" {
		// Placeholder until the recipient speaks, matching the SQL backends.
		to.username = toID
	}
	from.balance -= amount
	to.balance += amount
	return nil
}

func (m *Memory) FindUserID(ctx context.Context, channelID, username string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var (
		found string
		order int64 = -1
	)
	for id, acc := range m.points[channelID] {
		if strings.EqualFold(acc.username, username) && acc.order > order {
			found, order = id, acc.order
		}
	}
	return found, nil
}

func (m *Memory) Leaderboard(ctx context.Context, channelID string, limit int) ([]LeaderboardEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	accounts := make([]*memAccount, 0, len(m.points[channelID]))
	for _, acc := range m.points[channelID] {
		accounts = append(accounts, acc)
	}
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].balance != accounts[j].balance {
			return accounts[i].balance > accounts[j].balance
		}
		return accounts[i].order < accounts[j].order
	})
	if limit > 0 && len(accounts) > limit {
		accounts = accounts[:limit]
	}
	out := make([]LeaderboardEntry, len(accounts))
	for i, acc := range accounts {
		out[i] = LeaderboardEntry{Username: acc.username, Balance: acc.balance}
	}
	return out, nil
}

func (m *Memory) LoadCustomCommands(ctx context.Context, channelID string) (map[string]command.CustomCommand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]command.CustomCommand, len(m.customs[channelID]))
	for name, cmd := range m.customs[channelID] {
		out[name] = cmd
	}
	return out, nil
}

func (m *Memory) SaveCustomCommand(ctx context.Context, cmd command.CustomCommand) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.customs[cmd.ChannelID]
	if !ok {
		ch = make(map[string]command.CustomCommand)
		m.customs[cmd.ChannelID] = ch
	}
	if existing, ok := ch[cmd.Name]; ok {
		cmd.CreatedAt = existing.CreatedAt
		cmd.CreatedBy = existing.CreatedBy
	}
	ch[cmd.Name] = cmd
	return nil
}

func (m *Memory) DeleteCustomCommand(ctx context.Context, channelID, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.customs[channelID][name]; !ok {
		return false, nil
	}
	delete(m.customs[channelID], name)
	return true, nil
}
