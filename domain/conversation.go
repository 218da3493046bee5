package domain

import (
	"sort"
	"time"
)

// ConversationSummary is the latest exchange with one peer, as listed in the contacts panel.
type ConversationSummary struct {
	Profile
	LastMessage     Content   `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	LastStatus      Status    `json:"lastStatus"`
}

// Summarize groups the messages of forUser by peer, keeps the newest message of each group,
// joins it with the peer profile and sorts the result by recency (peer id ascending on ties).
// Messages not involving forUser are ignored. Peers missing from profiles are dropped.
func Summarize(forUser string, messages []Message, profiles map[string]Profile) []ConversationSummary {
	latest := make(map[string]Message)
	for _, m := range messages {
		if !m.Involves(forUser) {
			continue
		}
		peer := m.PeerOf(forUser)
		if current, ok := latest[peer]; !ok || m.NewerThan(current) {
			latest[peer] = m
		}
	}

	summaries := make([]ConversationSummary, 0, len(latest))
	for peer, m := range latest {
		profile, ok := profiles[peer]
		if !ok {
			continue
		}
		summaries = append(summaries, ConversationSummary{
			Profile:         profile,
			LastMessage:     m.Content,
			LastMessageTime: m.CreatedAt,
			LastStatus:      m.Status,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if !a.LastMessageTime.Equal(b.LastMessageTime) {
			return a.LastMessageTime.After(b.LastMessageTime)
		}
		return a.ID < b.ID
	})
	return summaries
}

// Peers returns the distinct other parties of forUser found in messages.
func Peers(forUser string, messages []Message) []string {
	seen := make(map[string]struct{})
	var peers []string
	for _, m := range messages {
		if !m.Involves(forUser) {
			continue
		}
		peer := m.PeerOf(forUser)
		if _, ok := seen[peer]; ok {
			continue
		}
		seen[peer] = struct{}{}
		peers = append(peers, peer)
	}
	return peers
}
