package conversation

import "github.com/autorename/autorename/internal/database"

// User identifies who sent an event.
type User struct {
	ID        int64
	Username  string
	FirstName string
}

func (u User) profile() database.Profile {
	return database.Profile{UserID: u.ID, Username: u.Username, FirstName: u.FirstName}
}

// Event is one inbound update. The set of implementations is closed.
type Event interface {
	Actor() User
	Kind() string
	isEvent()
}

// Command is a slash command. Name is lower case without the slash or a bot
// mention; Args is the trimmed rest of the line.
type Command struct {
	From User
	Name string
	Args string
}

// Text is a plain message that is not a command.
type Text struct {
	From User
	Body string
}

// Photo carries the largest size of an inbound image.
type Photo struct {
	From         User
	FileID       string
	FileUniqueID string
}

// Document is a file sent as a document.
type Document struct {
	From User
	File database.FileRef
}

// Video is a file sent as a video.
type Video struct {
	From User
	File database.FileRef
}

// ButtonPress is an inline keyboard press. MessageID is the message holding
// the keyboard.
type ButtonPress struct {
	From      User
	Data      string
	MessageID int
}

func (e Command) Actor() User     { return e.From }
func (e Text) Actor() User        { return e.From }
func (e Photo) Actor() User       { return e.From }
func (e Document) Actor() User    { return e.From }
func (e Video) Actor() User       { return e.From }
func (e ButtonPress) Actor() User { return e.From }

func (Command) Kind() string     { return "command" }
func (Text) Kind() string        { return "text" }
func (Photo) Kind() string       { return "photo" }
func (Document) Kind() string    { return "document" }
func (Video) Kind() string       { return "video" }
func (ButtonPress) Kind() string { return "button" }

func (Command) isEvent()     {}
func (Text) isEvent()        {}
func (Photo) isEvent()       {}
func (Document) isEvent()    {}
func (Video) isEvent()       {}
func (ButtonPress) isEvent() {}
