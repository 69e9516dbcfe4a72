package branch

import (
	"context"
	"fmt"
	"sort"

	"github.com/xiaot623/gogo/convo/internal/domain"
)

// Lineage returns the history a turn on branchID sees, oldest first: the
// trunk up to the outermost fork, then each nested branch up to the next
// fork, then the branch itself. An empty branchID yields the trunk.
func (m *Manager) Lineage(ctx context.Context, conversationID, branchID string) ([]domain.Message, error) {
	messages, err := m.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if branchID == "" {
		return trunkOf(messages), nil
	}
	branches, err := m.store.ListBranches(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	return LineageOf(branches, messages, branchID), nil
}

// LineageOf is Lineage over already-loaded rows. A fork message that no
// longer exists cuts the path there.
func LineageOf(branches []domain.Branch, messages []domain.Message, branchID string) []domain.Message {
	sort.SliceStable(messages, func(i, j int) bool { return messages[i].CreatedAt.Before(messages[j].CreatedAt) })
	if branchID == "" {
		return trunkOf(messages)
	}

	byBranch := make(map[string]domain.Branch, len(branches))
	for _, b := range branches {
		byBranch[b.BranchID] = b
	}
	byID := make(map[string]domain.Message, len(messages))
	lines := make(map[string][]domain.Message)
	for _, msg := range messages {
		byID[msg.MessageID] = msg
		lines[msg.BranchID] = append(lines[msg.BranchID], msg)
	}

	// Segments are collected innermost first.
	var segments [][]domain.Message
	current := branchID
	cut := "" // fork message id on the current line; "" means take the whole line
	for hops := 0; hops <= MaxWalk; hops++ {
		segments = append(segments, upTo(lines[current], cut))
		if current == "" {
			break
		}
		b, ok := byBranch[current]
		if !ok {
			break
		}
		fork, ok := byID[b.ParentMessageID]
		if !ok {
			break
		}
		current, cut = fork.BranchID, fork.MessageID
	}

	var out []domain.Message
	for i := len(segments) - 1; i >= 0; i-- {
		out = append(out, segments[i]...)
	}
	return out
}

// upTo returns the messages before the one with id cut. The fork message
// itself is replaced by the branch, so it is excluded.
func upTo(line []domain.Message, cut string) []domain.Message {
	if cut == "" {
		return line
	}
	for i, msg := range line {
		if msg.MessageID == cut {
			return line[:i]
		}
	}
	return line
}

func trunkOf(messages []domain.Message) []domain.Message {
	var out []domain.Message
	for _, msg := range messages {
		if msg.OnTrunk() {
			out = append(out, msg)
		}
	}
	return out
}
