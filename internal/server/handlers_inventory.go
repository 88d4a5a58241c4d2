package server

import (
	"context"
	"net/http"

	"github.com/jonathan/soul-spirits/internal/inventory"
	"github.com/jonathan/soul-spirits/internal/types"
)

// InventoryItemRequest represents the request body for the toggle and add endpoints
type InventoryItemRequest struct {
	Item string `json:"item" validate:"required,max=64"`
}

// InventoryView represents a session's inventory
type InventoryView struct {
	Items       []string `json:"items"`
	Strict      bool     `json:"strict"`
	CustomItems []string `json:"custom_items"`
}

// PresetsResponse represents the response for /inventory/presets
type PresetsResponse struct {
	Categories map[string][]string `json:"categories"`
	Staples    []string            `json:"staples"`
}

func inventoryView(inv types.InventoryConstraint) InventoryView {
	view := InventoryView{
		Items:       inv.Items,
		Strict:      inv.Strict,
		CustomItems: inv.CustomItems(),
	}
	if view.Items == nil {
		view.Items = []string{}
	}
	if view.CustomItems == nil {
		view.CustomItems = []string{}
	}
	return view
}

// handleGetInventory returns the inventory stored for the session's owner
func (s *Server) handleGetInventory(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	inv, err := s.inventory.Load(r.Context(), sess.owner)
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	s.jsonResponse(w, http.StatusOK, inventoryView(inv))
}

// handlePutInventory replaces the stored inventory
func (s *Server) handlePutInventory(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	var req types.InventoryConstraint
	if err := s.decodeBody(r, &req); err != nil {
		s.writeError(w, err, nil)
		return
	}
	inv := req.Normalized()
	if err := s.inventory.Save(r.Context(), sess.owner, inv); err != nil {
		s.writeError(w, err, nil)
		return
	}
	s.jsonResponse(w, http.StatusOK, inventoryView(inv))
}

// handleDeleteInventory clears the stored inventory
func (s *Server) handleDeleteInventory(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	if err := s.inventory.Delete(r.Context(), sess.owner); err != nil {
		s.writeError(w, err, nil)
		return
	}
	s.jsonResponse(w, http.StatusOK, inventoryView(types.InventoryConstraint{}))
}

// handleToggleInventoryItem adds an item that is absent or removes one that is present
func (s *Server) handleToggleInventoryItem(w http.ResponseWriter, r *http.Request) {
	s.updateInventory(w, r, inventory.Toggle)
}

// handleAddInventoryItem adds a custom item
func (s *Server) handleAddInventoryItem(w http.ResponseWriter, r *http.Request) {
	s.updateInventory(w, r, inventory.AddItem)
}

func (s *Server) updateInventory(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, store inventory.Store, owner, item string) (types.InventoryConstraint, error)) {
	sess, err := s.sessions.get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	var req InventoryItemRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeError(w, err, nil)
		return
	}
	inv, err := apply(r.Context(), s.inventory, sess.owner, req.Item)
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	s.jsonResponse(w, http.StatusOK, inventoryView(inv))
}

// handleInventoryPresets lists the preset categories and the staples assumed available
func (s *Server) handleInventoryPresets(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, PresetsResponse{
		Categories: types.InventoryPresets,
		Staples:    types.Staples,
	})
}
