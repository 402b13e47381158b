// Package event defines the closed set of events exchanged over a participant connection.
// Inbound and Outbound are sealed: only the variants declared here satisfy them,
// so every dispatch over them can be an exhaustive type switch.
package event

type Name string

const (
	UserJoinedName     Name = "user joined"
	UserLeftName       Name = "user left"
	ChatMessageName    Name = "chat message"
	FileUploadName     Name = "file upload"
	TypingName         Name = "typing"
	StopTypingName     Name = "stop typing"
	UserTypingName     Name = "user typing"
	UserStopTypingName Name = "user stop typing"
	DisconnectName     Name = "disconnect"
)

const (
	MaxMessageLength = 4096
	MaxFileSize      = 10 << 20
)

// Inbound is an event sent by a participant, or synthesized by the transport (Disconnect).
type Inbound interface {
	Name() Name
	inbound()
}

// Outbound is an event the server pushes to participants.
type Outbound interface {
	Name() Name
	payload() any
}

type ChatMessageRequest struct {
	Message string `json:"message" validate:"required,max=4096"`
}

// FileUploadRequest carries metadata of a file already accepted by the upload endpoint.
type FileUploadRequest struct {
	Filename     string `json:"filename" validate:"required,max=255,excludesall=/\\,excludes=.."`
	OriginalName string `json:"originalName" validate:"required,max=255"`
	Size         int64  `json:"size" validate:"gte=0,lte=10485760"`
}

type TypingStarted struct{}

type TypingStopped struct{}

// Disconnect is raised by the transport when the connection closes.
// It is never decoded from the wire.
type Disconnect struct{}

func (ChatMessageRequest) Name() Name { return ChatMessageName }
func (FileUploadRequest) Name() Name  { return FileUploadName }
func (TypingStarted) Name() Name      { return TypingName }
func (TypingStopped) Name() Name      { return StopTypingName }
func (Disconnect) Name() Name         { return DisconnectName }

func (ChatMessageRequest) inbound() {}
func (FileUploadRequest) inbound()  {}
func (TypingStarted) inbound()      {}
func (TypingStopped) inbound()      {}
func (Disconnect) inbound()         {}

// Presence is the payload shared by "user joined" and "user left".
type Presence struct {
	Username  string   `json:"username"`
	Users     []string `json:"users"`
	Timestamp string   `json:"timestamp"`
}

type UserJoined struct{ Presence }

type UserLeft struct{ Presence }

type ChatMessage struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	Message         string `json:"message"`
	OriginalMessage string `json:"originalMessage,omitempty"`
	Timestamp       string `json:"timestamp"`
	Type            string `json:"type"`
}

type FileUpload struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	URL          string `json:"url"`
	Timestamp    string `json:"timestamp"`
	Type         string `json:"type"`
}

// UserTyping and UserStopTyping travel as a bare username string.
type UserTyping struct{ Username string }

type UserStopTyping struct{ Username string }

func (UserJoined) Name() Name     { return UserJoinedName }
func (UserLeft) Name() Name       { return UserLeftName }
func (ChatMessage) Name() Name    { return ChatMessageName }
func (FileUpload) Name() Name     { return FileUploadName }
func (UserTyping) Name() Name     { return UserTypingName }
func (UserStopTyping) Name() Name { return UserStopTypingName }

func (e UserJoined) payload() any     { return e.Presence }
func (e UserLeft) payload() any       { return e.Presence }
func (e ChatMessage) payload() any    { return e }
func (e FileUpload) payload() any     { return e }
func (e UserTyping) payload() any     { return e.Username }
func (e UserStopTyping) payload() any { return e.Username }
