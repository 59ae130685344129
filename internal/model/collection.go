// Copyright (c) 2025 HealthChat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// COLLECTION TYPE
// =============================================================================

// Collection is the exclusive owner of all chats along with the current
// selection. Chats are ordered newest-created first; new chats are inserted
// at the front.
type Collection struct {
	Chats     []*Chat `json:"chats"`
	CurrentID string  `json:"current_id,omitempty"`
}

// NewCollection creates an empty collection with no selection.
func NewCollection() *Collection {
	return &Collection{
		Chats: make([]*Chat, 0),
	}
}

// AddChat inserts a chat at the front of the collection and selects it.
func (col *Collection) AddChat(c *Chat) {
	col.Chats = append([]*Chat{c}, col.Chats...)
	col.CurrentID = c.ID
}

// GetChat returns the chat with the given ID, or nil if absent.
func (col *Collection) GetChat(id string) *Chat {
	for _, c := range col.Chats {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Current returns the currently selected chat, or nil if none is selected.
func (col *Collection) Current() *Chat {
	if col.CurrentID == "" {
		return nil
	}
	return col.GetChat(col.CurrentID)
}

// Select sets the current selection. Returns false if no chat has that ID,
// in which case the selection is unchanged.
func (col *Collection) Select(id string) bool {
	if col.GetChat(id) == nil {
		return false
	}
	col.CurrentID = id
	return true
}

// RemoveChat deletes the chat with the given ID. If the deleted chat was
// selected, the selection falls back to the first remaining chat, or to
// nothing when the collection is left empty. Returns false if no chat
// had that ID.
func (col *Collection) RemoveChat(id string) bool {
	for i, c := range col.Chats {
		if c.ID == id {
			col.Chats = append(col.Chats[:i], col.Chats[i+1:]...)
			if col.CurrentID == id {
				if len(col.Chats) > 0 {
					col.CurrentID = col.Chats[0].ID
				} else {
					col.CurrentID = ""
				}
			}
			return true
		}
	}
	return false
}

// Len returns the number of chats.
func (col *Collection) Len() int {
	return len(col.Chats)
}

// IsEmpty returns true if the collection holds no chats.
func (col *Collection) IsEmpty() bool {
	return len(col.Chats) == 0
}

// Metas returns listing metadata for all chats in collection order.
func (col *Collection) Metas() []ChatMeta {
	metas := make([]ChatMeta, 0, len(col.Chats))
	for _, c := range col.Chats {
		metas = append(metas, c.GetMeta())
	}
	return metas
}
