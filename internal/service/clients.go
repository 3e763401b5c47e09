package service

import (
	"context"
	"iter"
	"strings"

	"pos-checkout/internal/apperrors"
	"pos-checkout/internal/models"
	"pos-checkout/internal/util"
)

// ClientLister fetches the full client directory
type ClientLister interface {
	ListClients(ctx context.Context, token string) ([]models.Client, error)
}

// ClientSelector searches the loaded directory and holds the purchaser of
// the sale being assembled.
type ClientSelector struct {
	lister   ClientLister
	clients  []models.Client
	selected *models.Client
}

// NewClientSelector creates a selector with an empty directory
func NewClientSelector(lister ClientLister) *ClientSelector {
	return &ClientSelector{lister: lister}
}

// Load replaces the directory with the backend's client list
func (s *ClientSelector) Load(ctx context.Context, token string) error {
	ctx, span := util.StartSpan(ctx, "ClientSelector.Load")
	defer span.End()

	clients, err := s.lister.ListClients(ctx, token)
	if err != nil {
		return err
	}
	s.clients = clients
	return nil
}

// Search yields the clients whose "first last document phone" string
// contains query, ignoring case. It can be ranged over repeatedly.
func (s *ClientSelector) Search(query string) iter.Seq[models.Client] {
	return SearchClients(s.clients, query)
}

// SearchClients filters directory by query without mutating it
func SearchClients(directory []models.Client, query string) iter.Seq[models.Client] {
	needle := strings.ToLower(query)
	return func(yield func(models.Client) bool) {
		for _, c := range directory {
			if needle != "" && !strings.Contains(searchKey(c), needle) {
				continue
			}
			if !yield(c) {
				return
			}
		}
	}
}

func searchKey(c models.Client) string {
	return strings.ToLower(c.FirstName + " " + c.LastName + " " + c.DocumentID + " " + c.Phone)
}

// Select makes the client with clientID the active purchaser
func (s *ClientSelector) Select(clientID int64) (models.Client, error) {
	for _, c := range s.clients {
		if c.ID == clientID {
			selected := c
			s.selected = &selected
			return selected, nil
		}
	}
	return models.Client{}, apperrors.NotFound("client", clientID)
}

// Selected returns the active purchaser, if any
func (s *ClientSelector) Selected() (models.Client, bool) {
	if s.selected == nil {
		return models.Client{}, false
	}
	return *s.selected, true
}

// Clear unsets the active purchaser
func (s *ClientSelector) Clear() {
	s.selected = nil
}
