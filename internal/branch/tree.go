package branch

import (
	"context"
	"fmt"
	"sort"

	"github.com/xiaot623/gogo/convo/internal/domain"
)

// Node is one line of the conversation: the trunk or a branch.
type Node struct {
	Branch   *domain.Branch   `json:"branch,omitempty"`
	Messages []domain.Message `json:"messages"`
	Children []*Node          `json:"children,omitempty"`
	Orphan   bool             `json:"orphan,omitempty"`
}

// ID is the branch id, empty for the trunk.
func (n *Node) ID() string {
	if n.Branch == nil {
		return ""
	}
	return n.Branch.BranchID
}

// Tree loads a conversation and assembles it.
func (m *Manager) Tree(ctx context.Context, conversationID string) ([]*Node, error) {
	branches, err := m.store.ListBranches(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	messages, err := m.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return BuildTree(branches, messages), nil
}

// BuildTree groups messages by branch and links each branch under the line
// that holds its fork message. The fork message is taken from the branch's
// first message, or from the branch itself when it has none. Branches whose
// fork message is gone, or that only reach each other in a cycle, become
// orphan roots after the trunk.
func BuildTree(branches []domain.Branch, messages []domain.Message) []*Node {
	sort.SliceStable(messages, func(i, j int) bool { return messages[i].CreatedAt.Before(messages[j].CreatedAt) })

	trunk := &Node{}
	nodes := map[string]*Node{"": trunk}
	order := make([]string, 0, len(branches))
	for i := range branches {
		b := branches[i]
		nodes[b.BranchID] = &Node{Branch: &b}
		order = append(order, b.BranchID)
	}

	lineOf := make(map[string]string, len(messages))
	for _, msg := range messages {
		n, ok := nodes[msg.BranchID]
		if !ok {
			// Messages of a deleted branch are not shown.
			continue
		}
		n.Messages = append(n.Messages, msg)
		lineOf[msg.MessageID] = msg.BranchID
	}

	// children: parent line id -> child branch ids.
	children := make(map[string][]string)
	for _, id := range order {
		n := nodes[id]
		fork := n.Branch.ParentMessageID
		if len(n.Messages) > 0 && n.Messages[0].ParentMessageID != "" {
			fork = n.Messages[0].ParentMessageID
		}
		parent, ok := lineOf[fork]
		if !ok || parent == id {
			continue
		}
		children[parent] = append(children[parent], id)
	}

	visited := map[string]bool{}
	var attach func(id string)
	attach = func(id string) {
		visited[id] = true
		for _, c := range children[id] {
			if visited[c] {
				continue
			}
			nodes[id].Children = append(nodes[id].Children, nodes[c])
			attach(c)
		}
	}

	hasParent := map[string]bool{}
	for _, ids := range children {
		for _, id := range ids {
			hasParent[id] = true
		}
	}

	attach("")
	roots := []*Node{trunk}
	orphan := func(id string) {
		n := nodes[id]
		n.Orphan = true
		roots = append(roots, n)
		attach(id)
	}
	for _, id := range order {
		if !visited[id] && !hasParent[id] {
			orphan(id)
		}
	}
	// Whatever is left only links into a cycle.
	for _, id := range order {
		if !visited[id] {
			orphan(id)
		}
	}
	return roots
}
