package capability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"factotum/internal/domain"
	"factotum/internal/tool"

	"github.com/google/uuid"
)

// NewContacts builds the contacts agent: a small persistent address book.
func NewContacts(store domain.ContactStore) *Agent {
	c := &contactBook{store: store}

	add := tool.New("contact_add",
		"Save a contact. At least one of email or phone should be provided if known.",
		tool.NewSchema(
			tool.Field{Name: "name", Type: tool.TypeString, Description: "Full name of the contact", Required: true},
			tool.Field{Name: "email", Type: tool.TypeString, Description: "Email address"},
			tool.Field{Name: "phone", Type: tool.TypeString, Description: "Phone number"},
			tool.Field{Name: "notes", Type: tool.TypeString, Description: "Free-form notes about the contact"},
		),
		c.add,
	)

	search := tool.New("contact_search",
		"Find saved contacts by name fragment (case-insensitive).",
		tool.NewSchema(
			tool.Field{Name: "query", Type: tool.TypeString, Description: "Name or part of a name to search for", Required: true},
		),
		c.search,
	)

	return New("contacts",
		"A persistent address book of people the user knows.",
		"Use the contact tools when the user mentions saving or looking up a person's details. Never invent contact information; search first.",
		add, search,
	)
}

type contactBook struct {
	store domain.ContactStore
}

type contactAddArgs struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Notes string `json:"notes"`
}

func (a contactAddArgs) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("name must not be empty")
	}
	return nil
}

type contactSearchArgs struct {
	Query string `json:"query"`
}

func (c *contactBook) add(ctx context.Context, args contactAddArgs) (string, error) {
	contact := domain.Contact{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(args.Name),
		Email:     strings.TrimSpace(args.Email),
		Phone:     strings.TrimSpace(args.Phone),
		Notes:     strings.TrimSpace(args.Notes),
		CreatedAt: time.Now(),
	}
	if err := c.store.SaveContact(ctx, contact); err != nil {
		return "", fmt.Errorf("save contact: %w", err)
	}
	return fmt.Sprintf("Saved contact %s (%s)", contact.Name, contact.ID), nil
}

func (c *contactBook) search(ctx context.Context, args contactSearchArgs) (string, error) {
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return "", fmt.Errorf("query must not be empty")
	}
	contacts, err := c.store.FindContacts(ctx, query, 10)
	if err != nil {
		return "", fmt.Errorf("search contacts: %w", err)
	}
	if len(contacts) == 0 {
		return fmt.Sprintf("No contacts matching %q.", query), nil
	}
	var lines []string
	for _, ct := range contacts {
		lines = append(lines, formatContact(ct))
	}
	return strings.Join(lines, "\n"), nil
}

func formatContact(c domain.Contact) string {
	parts := []string{c.Name}
	if c.Email != "" {
		parts = append(parts, "email: "+c.Email)
	}
	if c.Phone != "" {
		parts = append(parts, "phone: "+c.Phone)
	}
	if c.Notes != "" {
		parts = append(parts, "notes: "+c.Notes)
	}
	return "- " + strings.Join(parts, ", ")
}
