package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command represents a bot command with its handler, description, and metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	Hidden      bool
	Aliases     []string
}

// Public reports whether the command is listed in the menu of regular users.
func (c Command) Public() bool {
	return !c.Hidden && !c.AdminOnly
}

// Listed reports whether the command is listed in the menu of administrators.
func (c Command) Listed() bool {
	return !c.Hidden
}
