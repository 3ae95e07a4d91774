package protocol

import "fmt"

// NATS subject constants and helpers.
const (
	SubjectCommands = "edbridge.commands"
)

func SubjectEvents(source string) string {
	return fmt.Sprintf("edbridge.events.%s", source)
}
