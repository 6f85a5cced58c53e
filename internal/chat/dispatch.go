package chat

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/studyhall-app/studyhall/internal/models"
)

// SendInput carries user intent for a message send.
type SendInput struct {
	Content  string
	Kind     models.MessageKind
	MediaRef string
	ReplyTo  string
}

// Dispatcher turns user intent into backbone writes. Every operation is a
// single state write; gating is checked before any write is attempted.
type Dispatcher struct {
	messages MessageStore
	feed     Feed
	lessons  LessonStore
	settings SettingsStore
	profiles ProfileStore
	groups   GroupStore
	resolver *Resolver
	logger   zerolog.Logger
}

// NewDispatcher wires a dispatcher over the backbone stores.
func NewDispatcher(
	messages MessageStore,
	feed Feed,
	lessons LessonStore,
	settings SettingsStore,
	profiles ProfileStore,
	groups GroupStore,
	resolver *Resolver,
	logger zerolog.Logger,
) *Dispatcher {
	return &Dispatcher{
		messages: messages,
		feed:     feed,
		lessons:  lessons,
		settings: settings,
		profiles: profiles,
		groups:   groups,
		resolver: resolver,
		logger:   logger.With().Str("component", "dispatcher").Logger(),
	}
}

// ClassRoomFor returns the room a class-wide send targets under the given
// resolved state: the active lesson's room when one is live or effectively
// live, otherwise today's unscoped feed.
func ClassRoomFor(st State, now time.Time) Room {
	if l := st.ActiveLesson; l != nil && (l.Status == models.LessonLive || st.EffectivelyLive) {
		return ClassRoom(l.ID)
	}
	return DayRoom(now)
}

// SendClass posts a message to the class-wide room. Non-staff sends are
// rejected when the room is locked (unless the sender holds a per-student
// unlock) or when the sender is not premium.
func (d *Dispatcher) SendClass(ctx context.Context, sender *models.Profile, in SendInput) (*models.Message, error) {
	st := d.resolver.State()
	caps := ResolveCapabilities(sender.Role)

	if !caps.CanModerate {
		if st.ActiveLesson != nil && st.ActiveLesson.Status == models.LessonCompleted {
			return nil, ErrArchiveReadOnly
		}
		if st.Locked && !sender.IsUnlocked {
			return nil, ErrChatLocked
		}
		if !sender.IsPremium {
			return nil, ErrPremiumRequired
		}
	}

	now := time.Now()
	room := ClassRoomFor(st, now)
	msg, err := d.post(ctx, room, sender, in)
	if err != nil {
		return nil, err
	}
	// Sending implies having read the room up to now.
	if err := d.profiles.TouchLastRead(ctx, sender.ID, room.LogKey(), now); err != nil {
		d.logger.Warn().Err(err).Str("room", room.LogKey()).Msg("last-read update failed")
	}
	return msg, nil
}

// SendDirect posts a message to the direct room shared with `to`.
func (d *Dispatcher) SendDirect(ctx context.Context, sender *models.Profile, to uuid.UUID, in SendInput) (*models.Message, error) {
	target, err := d.profiles.Profile(ctx, to)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ErrNotFound
	}
	return d.post(ctx, DirectRoom(sender.ID, to), sender, in)
}

// SendGroup posts a message to a study group's room.
func (d *Dispatcher) SendGroup(ctx context.Context, sender *models.Profile, groupID uuid.UUID, in SendInput) (*models.Message, error) {
	group, err := d.groups.Group(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrNotFound
	}
	return d.post(ctx, GroupRoom(groupID), sender, in)
}

// post validates the input, appends the message to the room log, and
// publishes the insert event.
func (d *Dispatcher) post(ctx context.Context, room Room, sender *models.Profile, in SendInput) (*models.Message, error) {
	kind := in.Kind
	if kind == "" {
		kind = models.MessageText
	}
	if !kind.Valid() {
		return nil, ErrEmptyMessage
	}

	content := strings.TrimSpace(in.Content)
	if kind == models.MessageText && content == "" {
		return nil, ErrEmptyMessage
	}
	if content == "" {
		content = kind.Placeholder()
	}

	if in.ReplyTo != "" {
		parent, err := d.messages.ByID(ctx, room.LogKey(), in.ReplyTo)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, ErrReplyTargetGone
		}
	}

	msg := &models.Message{
		RoomKey:  room.LogKey(),
		AuthorID: sender.ID.String(),
		Content:  content,
		Kind:     kind,
		MediaRef: in.MediaRef,
		ReplyTo:  in.ReplyTo,
	}
	if err := d.messages.Append(ctx, room.LogKey(), msg); err != nil {
		return nil, err
	}
	d.publish(ctx, room, Event{Op: OpInsert, Message: *msg})
	return msg, nil
}

// EditMessage replaces a message's content, marking it edited. Only the
// author or a moderator may edit.
func (d *Dispatcher) EditMessage(ctx context.Context, room Room, actor *models.Profile, id, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}

	msg, err := d.messages.ByID(ctx, room.LogKey(), id)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrNotFound
	}
	if msg.AuthorID != actor.ID.String() && !ResolveCapabilities(actor.Role).CanModerate {
		return nil, ErrForbidden
	}

	msg.Content = content
	msg.IsEdited = true
	if err := d.messages.Update(ctx, room.LogKey(), msg); err != nil {
		return nil, err
	}
	d.publish(ctx, room, Event{Op: OpUpdate, Message: *msg})
	return msg, nil
}

// DeleteMessage removes a message. Only the author or a moderator may delete.
func (d *Dispatcher) DeleteMessage(ctx context.Context, room Room, actor *models.Profile, id string) error {
	msg, err := d.messages.ByID(ctx, room.LogKey(), id)
	if err != nil {
		return err
	}
	if msg == nil {
		return ErrNotFound
	}
	if msg.AuthorID != actor.ID.String() && !ResolveCapabilities(actor.Role).CanModerate {
		return ErrForbidden
	}
	if err := d.messages.Delete(ctx, room.LogKey(), id); err != nil {
		return err
	}
	d.publish(ctx, room, Event{Op: OpDelete, Message: *msg})
	return nil
}

// MarkDirectRead flips the read flag on the unread messages the other party
// sent in the shared direct room, publishing an update per flipped message.
func (d *Dispatcher) MarkDirectRead(ctx context.Context, reader *models.Profile, other uuid.UUID) error {
	room := DirectRoom(reader.ID, other)
	msgs, err := d.messages.Range(ctx, room.LogKey(), DefaultHistoryLimit, 0)
	if err != nil {
		return err
	}
	for i := range msgs {
		m := msgs[i]
		if m.IsRead || m.AuthorID == reader.ID.String() {
			continue
		}
		m.IsRead = true
		if err := d.messages.Update(ctx, room.LogKey(), &m); err != nil {
			return err
		}
		d.publish(ctx, room, Event{Op: OpUpdate, Message: m})
	}
	return d.profiles.TouchLastRead(ctx, reader.ID, room.LogKey(), time.Now())
}

// SetHandRaised toggles the caller's raised-hand flag.
func (d *Dispatcher) SetHandRaised(ctx context.Context, actor *models.Profile, raised bool) error {
	return d.profiles.SetHandRaised(ctx, actor.ID, raised)
}

// SetStudentUnlock grants or revokes a per-student override of the global
// lock. Moderator only.
func (d *Dispatcher) SetStudentUnlock(ctx context.Context, actor *models.Profile, studentID uuid.UUID, unlocked bool) error {
	if !ResolveCapabilities(actor.Role).CanModerate {
		return ErrForbidden
	}
	student, err := d.profiles.Profile(ctx, studentID)
	if err != nil {
		return err
	}
	if student == nil {
		return ErrNotFound
	}
	return d.profiles.SetUnlocked(ctx, studentID, unlocked)
}

// SetGlobalLock toggles the platform-wide chat lock. Moderator only.
func (d *Dispatcher) SetGlobalLock(ctx context.Context, actor *models.Profile, locked bool) error {
	if !ResolveCapabilities(actor.Role).CanModerate {
		return ErrForbidden
	}
	if err := d.settings.SetChatLock(ctx, locked, actor.ID); err != nil {
		return err
	}
	d.notifyControl(ctx, LockControlChannel)
	return nil
}

// CreateLesson schedules a new lesson. Moderator only.
func (d *Dispatcher) CreateLesson(ctx context.Context, actor *models.Profile, topic string, scheduledAt time.Time) (*models.Lesson, error) {
	if !ResolveCapabilities(actor.Role).CanModerate {
		return nil, ErrForbidden
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrEmptyMessage
	}
	lesson, err := d.lessons.CreateLesson(ctx, topic, scheduledAt, actor.ID)
	if err != nil {
		return nil, err
	}
	d.notifyControl(ctx, LessonControlChannel)
	return lesson, nil
}

// StartLesson moves a scheduled lesson to live, stamping started_at.
func (d *Dispatcher) StartLesson(ctx context.Context, actor *models.Profile, id uuid.UUID) (*models.Lesson, error) {
	if !ResolveCapabilities(actor.Role).CanModerate {
		return nil, ErrForbidden
	}
	lesson, err := d.lessons.MarkLessonLive(ctx, id)
	if err != nil {
		return nil, err
	}
	if lesson == nil {
		return nil, ErrInvalidTransition
	}
	d.notifyControl(ctx, LessonControlChannel)
	return lesson, nil
}

// EndLesson moves a live lesson to completed, stamping ended_at.
func (d *Dispatcher) EndLesson(ctx context.Context, actor *models.Profile, id uuid.UUID) (*models.Lesson, error) {
	if !ResolveCapabilities(actor.Role).CanModerate {
		return nil, ErrForbidden
	}
	lesson, err := d.lessons.MarkLessonCompleted(ctx, id)
	if err != nil {
		return nil, err
	}
	if lesson == nil {
		return nil, ErrInvalidTransition
	}
	d.notifyControl(ctx, LessonControlChannel)
	return lesson, nil
}

// DeleteLesson removes a scheduled or live lesson. Completed lessons are
// terminal and cannot be deleted.
func (d *Dispatcher) DeleteLesson(ctx context.Context, actor *models.Profile, id uuid.UUID) error {
	if !ResolveCapabilities(actor.Role).CanModerate {
		return ErrForbidden
	}
	deleted, err := d.lessons.DeleteLesson(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrInvalidTransition
	}
	d.notifyControl(ctx, LessonControlChannel)
	return nil
}

// EnsureStudyGroup returns the group for (type, name), creating it if absent.
// Look-up-before-insert: two concurrent first-joiners may race, in which case
// the loser re-reads instead of failing.
func (d *Dispatcher) EnsureStudyGroup(ctx context.Context, t models.GroupType, name string) (*models.StudyGroup, error) {
	name = strings.TrimSpace(name)
	if !t.Valid() || name == "" {
		return nil, ErrNotFound
	}

	group, err := d.groups.GroupByTypeName(ctx, t, name)
	if err != nil {
		return nil, err
	}
	if group != nil {
		return group, nil
	}

	group, err = d.groups.CreateGroup(ctx, t, name)
	if err != nil {
		// Lost the creation race: the winner's row is usable.
		if existing, lookupErr := d.groups.GroupByTypeName(ctx, t, name); lookupErr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}
	return group, nil
}

func (d *Dispatcher) publish(ctx context.Context, room Room, ev Event) {
	if err := d.feed.Publish(ctx, room.Channel(), ev); err != nil {
		d.logger.Warn().Err(err).Str("channel", room.Channel()).Msg("event publish failed")
	}
}

func (d *Dispatcher) notifyControl(ctx context.Context, channel string) {
	if err := d.feed.Publish(ctx, channel, Event{Op: OpUpdate}); err != nil {
		d.logger.Warn().Err(err).Str("channel", channel).Msg("control publish failed")
	}
}
