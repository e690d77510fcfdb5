package model

import "time"

// Role of a dashboard account.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleEmployee
}

// Page is a dashboard section access is granted to.
type Page string

const (
	PageCalendar   Page = "calendar"
	PageSettings   Page = "settings"
	PageChats      Page = "chats"
	PageClients    Page = "clients"
	PageCatalog    Page = "catalog"
	PageAssistants Page = "assistants"
	PageBilling    Page = "billing"
	PageEmployees  Page = "employees"
)

// Pages lists every dashboard page.
var Pages = []Page{PageCalendar, PageSettings, PageChats, PageClients, PageCatalog, PageAssistants, PageBilling, PageEmployees}

// Valid reports whether p is a known page.
func (p Page) Valid() bool {
	for _, known := range Pages {
		if known == p {
			return true
		}
	}
	return false
}

// Employee is an account with page permissions.
type Employee struct {
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Role        Role      `json:"role"`
	Pages       []Page    `json:"pages"`
	IsBlocked   bool      `json:"isBlocked"`
	BlockReason string    `json:"blockReason,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
	UpdatedAt   time.Time `json:"updatedAt,omitzero"`
}

// HasPage reports whether p is among the employee's granted pages.
func (e *Employee) HasPage(p Page) bool {
	for _, granted := range e.Pages {
		if granted == p {
			return true
		}
	}
	return false
}
