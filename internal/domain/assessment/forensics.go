package assessment

import (
	"sort"
	"strings"

	"github.com/shadowscope/shadow-ai-assessor/internal/domain/values"
)

type userSet map[string]struct{}

// ForensicsIndex maps date -> app name -> distinct users seen that day.
// Recording the same user twice for an app/day is a no-op.
type ForensicsIndex struct {
	days map[string]map[string]userSet
}

func NewForensicsIndex() *ForensicsIndex {
	return &ForensicsIndex{days: make(map[string]map[string]userSet)}
}

func (f *ForensicsIndex) Record(date, app, user string) {
	apps, ok := f.days[date]
	if !ok {
		apps = make(map[string]userSet)
		f.days[date] = apps
	}
	users, ok := apps[app]
	if !ok {
		users = make(userSet)
		apps[app] = users
	}
	users[user] = struct{}{}
}

// Count returns the number of distinct users for app on date.
func (f *ForensicsIndex) Count(date, app string) int {
	return len(f.days[date][app])
}

// AppTotals tracks distinct users per app across the whole window and
// remembers the order apps were first seen in.
type AppTotals struct {
	order []string
	users map[string]userSet
}

func NewAppTotals() *AppTotals {
	return &AppTotals{users: make(map[string]userSet)}
}

func (a *AppTotals) Record(app, user string) {
	users, ok := a.users[app]
	if !ok {
		users = make(userSet)
		a.users[app] = users
		a.order = append(a.order, app)
	}
	users[user] = struct{}{}
}

func (a *AppTotals) Len() int {
	return len(a.order)
}

func (a *AppTotals) Count(app string) int {
	return len(a.users[app])
}

// Top returns up to n app names by distinct-user count, descending.
// Ties keep first-seen order.
func (a *AppTotals) Top(n int) []string {
	ranked := make([]string, len(a.order))
	copy(ranked, a.order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return len(a.users[ranked[i]]) > len(a.users[ranked[j]])
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// PromptTally counts AI interactions per user.
type PromptTally struct {
	order  []string
	counts map[string]int
}

func NewPromptTally() *PromptTally {
	return &PromptTally{counts: make(map[string]int)}
}

func (p *PromptTally) Record(email string) {
	if _, ok := p.counts[email]; !ok {
		p.order = append(p.order, email)
	}
	p.counts[email]++
}

// Top ranks users by prompt count descending, ties in first-seen order.
func (p *PromptTally) Top(n int) []PowerUser {
	ranked := make([]string, len(p.order))
	copy(ranked, p.order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return p.counts[ranked[i]] > p.counts[ranked[j]]
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}

	users := make([]PowerUser, 0, len(ranked))
	for _, email := range ranked {
		users = append(users, PowerUser{
			Email:       email,
			Name:        DerivedName(email),
			PromptCount: p.counts[email],
		})
	}
	return users
}

// DerivedName is the local part of an email address. Addresses that do
// not parse fall back to the text before the first @.
func DerivedName(email string) string {
	if parsed, err := values.NewEmail(email); err == nil {
		return parsed.LocalPart()
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}
