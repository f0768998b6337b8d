package imap

// FolderEventKind distinguishes the three folder lifecycle events.
type FolderEventKind int

const (
	FolderCreated FolderEventKind = iota
	FolderDeleted
	FolderRenamed
)

// FolderEvent is emitted when a folder handle (or any handle sharing
// its path) is created, deleted, or renamed.
type FolderEvent struct {
	Kind    FolderEventKind
	OldPath string
	NewPath string
}

// CountEventKind distinguishes additions from removals in a
// MessageCountEvent.
type CountEventKind int

const (
	MessagesAdded CountEventKind = iota
	MessagesRemoved
)

// MessageCountEvent is emitted when the folder's message count changes
// because of EXISTS growth or EXPUNGE.
type MessageCountEvent struct {
	Kind    CountEventKind
	Numbers []uint32
}

// MessageChangedEvent is emitted when FETCH applies a change to an
// already-known message; currently only FLAGS changes are tracked.
type MessageChangedEvent struct {
	Numbers []uint32
}

// EventSink receives the events a Folder emits while draining
// responses. Any field left nil is simply not called.
type EventSink struct {
	OnFolder         func(FolderEvent)
	OnMessageCount   func(MessageCountEvent)
	OnMessageChanged func(MessageChangedEvent)
}

func (s EventSink) folder(e FolderEvent) {
	if s.OnFolder != nil {
		s.OnFolder(e)
	}
}

func (s EventSink) count(e MessageCountEvent) {
	if s.OnMessageCount != nil {
		s.OnMessageCount(e)
	}
}

func (s EventSink) changed(e MessageChangedEvent) {
	if s.OnMessageChanged != nil {
		s.OnMessageChanged(e)
	}
}
