package api

import "net/http"

// Command describes one chat command the bot exposes.
type Command struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var commands = []Command{
	{"queryserver", "Query a game server without monitoring it"},
	{"addserver", "Add a game server to the current channel"},
	{"delserver", "Remove a monitored game server from the current channel"},
	{"refresh", "Resend the status messages of the current channel"},
	{"factoryreset", "Delete every monitored server of the guild"},
	{"moveup", "Swap a server with the one displayed above it"},
	{"movedown", "Swap a server with the one displayed below it"},
	{"changestyle", "Change the display style of a server"},
	{"editstyledata", "Edit the style data of a server"},
	{"switch", "Move servers to another channel"},
	{"settimezone", "Set the timestamp timezone of a server"},
	{"setclock", "Set the 12/24 hour clock format of a server"},
	{"setlocale", "Set the display locale of a server"},
	{"setalert", "Configure the status-alert webhook of a server"},
}

func listCommands(w http.ResponseWriter, _ *http.Request) {
	Ok(w, commands)
}
