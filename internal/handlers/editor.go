package handlers

import (
	"net/http"

	"folio/internal/apperr"
	"folio/internal/editor"
	"folio/internal/transform"
)

// SessionState is the view of an editor session sent to the UI.
type SessionState struct {
	ID           string             `json:"id"`
	AssetID      string             `json:"assetId"`
	Current      editor.Snapshot    `json:"current"`
	CanUndo      bool               `json:"canUndo"`
	CanRedo      bool               `json:"canRedo"`
	Dirty        bool               `json:"dirty"`
	Draft        *editor.CanvasRect `json:"draft,omitempty"`
	CropOnCanvas *editor.CanvasRect `json:"cropOnCanvas,omitempty"`
	Operations   []transform.OpSpec `json:"operations"`
}

// SessionAction is one transition of an editor session.
type SessionAction struct {
	Action  string  `json:"action"`
	Degrees int     `json:"degrees,omitempty"`
	Zoom    float64 `json:"zoom,omitempty"`
	X       float64 `json:"x,omitempty"`
	Y       float64 `json:"y,omitempty"`
	Width   float64 `json:"width,omitempty"`
	Height  float64 `json:"height,omitempty"`
}

func stateOf(id string, s *editor.Session) SessionState {
	return SessionState{
		ID:           id,
		AssetID:      s.AssetID(),
		Current:      s.Current(),
		CanUndo:      s.CanUndo(),
		CanRedo:      s.CanRedo(),
		Dirty:        s.Dirty(),
		Draft:        s.Draft(),
		CropOnCanvas: s.CropOnCanvas(),
		Operations:   transform.Specs(s.Ops()),
	}
}

// OpenSession starts an editor session on a live image.
func (h *Handlers) OpenSession(w http.ResponseWriter, r *http.Request) {
	asset, err := h.db.GetAsset(r.Context(), pathID(r))
	if err != nil {
		respondErr(w, err)
		return
	}
	if asset.InTrash() {
		respondErr(w, apperr.New(apperr.InvalidOperation, "open editor", "image %s is in the trash", asset.ID))
		return
	}

	id, _ := h.editors.Open(asset)
	var state SessionState
	err = h.editors.Do(id, func(s *editor.Session) error {
		state = stateOf(id, s)
		return nil
	})
	respond(w, state, err)
}

// GetSession returns the state of a session.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	var state SessionState
	err := h.editors.Do(id, func(s *editor.Session) error {
		state = stateOf(id, s)
		return nil
	})
	respond(w, state, err)
}

// SessionTransition applies one action to a session and returns the new
// state.
func (h *Handlers) SessionTransition(w http.ResponseWriter, r *http.Request) {
	var req SessionAction
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, err)
		return
	}

	id := pathID(r)
	var state SessionState
	err := h.editors.Do(id, func(s *editor.Session) error {
		if err := applyAction(s, req); err != nil {
			return err
		}
		state = stateOf(id, s)
		return nil
	})
	respond(w, state, err)
}

func applyAction(s *editor.Session, a SessionAction) error {
	switch a.Action {
	case "rotate":
		return s.Rotate(a.Degrees)
	case "flip-horizontal":
		s.ToggleFlipH()
	case "flip-vertical":
		s.ToggleFlipV()
	case "zoom":
		s.SetZoom(a.Zoom)
	case "zoom-in":
		s.ZoomIn()
	case "zoom-out":
		s.ZoomOut()
	case "pan":
		s.Pan(a.X, a.Y)
	case "canvas":
		return s.SetCanvasSize(a.Width, a.Height)
	case "begin-crop":
		s.BeginCrop(a.X, a.Y)
	case "update-crop":
		return s.UpdateCrop(a.X, a.Y)
	case "commit-crop":
		return s.CommitCrop()
	case "cancel-crop":
		s.CancelCrop()
	case "clear-crop":
		s.ClearCrop()
	case "undo":
		s.Undo()
	case "redo":
		s.Redo()
	case "reset":
		s.Reset()
	default:
		return apperr.New(apperr.InvalidOperation, "editor action", "unknown action %q", a.Action)
	}
	return nil
}

// SaveSession applies the session's edits to its image. A successful save
// closes the session; a failed one leaves it open for another try.
func (h *Handlers) SaveSession(w http.ResponseWriter, r *http.Request) {
	asset, err := h.editors.Save(r.Context(), pathID(r), h.store)
	respond(w, asset, err)
}

// CloseSession discards a session without saving.
func (h *Handlers) CloseSession(w http.ResponseWriter, r *http.Request) {
	h.editors.Close(pathID(r))
	respondOK(w, nil)
}
