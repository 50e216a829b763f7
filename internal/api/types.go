package api

import "github.com/seedlabs/relay-listener/internal/model"

// MessagesPath is the relay's history endpoint.
const MessagesPath = "/api/get-messages"

// DefaultIntervalMinutes matches the relay's default window.
const DefaultIntervalMinutes = 10

// MessagesResponse from GET /api/get-messages
type MessagesResponse []model.HistoryItem
