package channel

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/atlasbrief/atlasbrief/internal/bus"
	"github.com/atlasbrief/atlasbrief/internal/config"
)

func TestBaseChannel_Name(t *testing.T) {
	b := bus.NewMessageBus(10)
	ch := NewBaseChannel("test", b, nil)
	if ch.Name() != "test" {
		t.Errorf("Name = %q, want test", ch.Name())
	}
}

func TestBaseChannel_IsAllowed_NoFilter(t *testing.T) {
	b := bus.NewMessageBus(10)
	ch := NewBaseChannel("test", b, nil)
	if !ch.IsAllowed("anyone") {
		t.Error("should allow anyone when allowFrom is empty")
	}
}

func TestBaseChannel_IsAllowed_WithFilter(t *testing.T) {
	b := bus.NewMessageBus(10)
	ch := NewBaseChannel("test", b, []string{"user1", "user2"})

	if !ch.IsAllowed("user1") {
		t.Error("should allow user1")
	}
	if !ch.IsAllowed("user2") {
		t.Error("should allow user2")
	}
	if ch.IsAllowed("user3") {
		t.Error("should reject user3")
	}
}

func TestNewTelegramChannel_NoToken(t *testing.T) {
	b := bus.NewMessageBus(10)
	_, err := NewTelegramChannel(config.TelegramConfig{}, b)
	if err == nil {
		t.Error("expected error for empty token")
	}
}

func TestNewTelegramChannel_Valid(t *testing.T) {
	b := bus.NewMessageBus(10)
	ch, err := NewTelegramChannel(config.TelegramConfig{Token: "fake-token"}, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch.Name() != "telegram" {
		t.Errorf("Name = %q, want telegram", ch.Name())
	}
}

func TestToTelegramHTML(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"hello", "hello"},
		{"**bold**", "<b>bold</b>"},
		{"`code`", "<code>code</code>"},
		{"a & b", "a &amp; b"},
		{"<tag>", "&lt;tag&gt;"},
		{"*italic*", "<i>italic</i>"},
		{"**bold** and *italic*", "<b>bold</b> and <i>italic</i>"},
	}

	for _, tt := range tests {
		got := toTelegramHTML(tt.input)
		if got != tt.want {
			t.Errorf("toTelegramHTML(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestChannelManager_Empty(t *testing.T) {
	b := bus.NewMessageBus(10)
	m, err := NewChannelManager(config.ChannelsConfig{}, b)
	if err != nil {
		t.Fatalf("NewChannelManager error: %v", err)
	}
	if len(m.EnabledChannels()) != 0 {
		t.Errorf("expected 0 enabled channels, got %d", len(m.EnabledChannels()))
	}
	if err := m.StartAll(context.Background()); err != nil {
		t.Errorf("StartAll error: %v", err)
	}
	if err := m.StopAll(); err != nil {
		t.Errorf("StopAll error: %v", err)
	}
}

func TestTelegramChannel_Stop_NotStarted(t *testing.T) {
	b := bus.NewMessageBus(10)
	ch, _ := NewTelegramChannel(config.TelegramConfig{Token: "fake-token"}, b)

	if err := ch.Stop(); err != nil {
		t.Errorf("Stop error: %v", err)
	}
}

func TestTelegramChannel_Send_NilBot(t *testing.T) {
	b := bus.NewMessageBus(10)
	ch, _ := NewTelegramChannel(config.TelegramConfig{Token: "fake-token"}, b)

	err := ch.Send(bus.OutboundMessage{ChatID: "123", Content: "test"})
	if err == nil {
		t.Error("expected error when bot is nil")
	}
}

// mockChannel implements Channel for manager tests.
type mockChannel struct {
	name     string
	started  bool
	stopped  bool
	startErr error
	stopErr  error
	sentMsgs []bus.OutboundMessage
}

func (m *mockChannel) Name() string { return m.name }

func (m *mockChannel) Start(ctx context.Context) error {
	m.started = true
	return m.startErr
}

func (m *mockChannel) Stop() error {
	m.stopped = true
	return m.stopErr
}

func (m *mockChannel) Send(msg bus.OutboundMessage) error {
	m.sentMsgs = append(m.sentMsgs, msg)
	return nil
}

func TestChannelManager_WithMockChannel(t *testing.T) {
	b := bus.NewMessageBus(10)
	mock := &mockChannel{name: "mock"}

	m := &ChannelManager{
		channels: map[string]Channel{"mock": mock},
		bus:      b,
	}

	if err := m.StartAll(context.Background()); err != nil {
		t.Errorf("StartAll error: %v", err)
	}
	if !mock.started {
		t.Error("mock channel should be started")
	}

	channels := m.EnabledChannels()
	if len(channels) != 1 || channels[0] != "mock" {
		t.Errorf("EnabledChannels = %v, want [mock]", channels)
	}

	if err := m.StopAll(); err != nil {
		t.Errorf("StopAll error: %v", err)
	}
	if !mock.stopped {
		t.Error("mock channel should be stopped")
	}
}

func TestChannelManager_StartAll_Error(t *testing.T) {
	b := bus.NewMessageBus(10)
	mock := &mockChannel{name: "mock", startErr: fmt.Errorf("start failed")}

	m := &ChannelManager{
		channels: map[string]Channel{"mock": mock},
		bus:      b,
	}

	if err := m.StartAll(context.Background()); err == nil {
		t.Error("expected error from StartAll")
	}
}

func TestChannelManager_StopAll_Error(t *testing.T) {
	b := bus.NewMessageBus(10)
	mock := &mockChannel{name: "mock", stopErr: fmt.Errorf("stop failed")}

	m := &ChannelManager{
		channels: map[string]Channel{"mock": mock},
		bus:      b,
	}

	// Stop errors are logged, not returned.
	if err := m.StopAll(); err != nil {
		t.Errorf("StopAll should not return error: %v", err)
	}
}

func TestTelegramChannel_Send_InvalidChatID(t *testing.T) {
	b := bus.NewMessageBus(10)
	ch, _ := NewTelegramChannel(config.TelegramConfig{Token: "fake-token"}, b)
	ch.SetBot(newMockBot())

	err := ch.Send(bus.OutboundMessage{ChatID: "not-a-number", Content: "test"})
	if err == nil {
		t.Error("expected error for invalid chat ID")
	}
}

func TestTelegramChannel_HandleMessage_Allowed(t *testing.T) {
	b := bus.NewMessageBus(10)
	ch, _ := NewTelegramChannel(config.TelegramConfig{Token: "fake-token"}, b)

	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: 123, UserName: "testuser"},
		Chat: &tgbotapi.Chat{ID: 456},
		Text: "hello",
		Date: 1234567890,
	}

	ch.handleMessage(msg)

	select {
	case inbound := <-b.Inbound:
		if inbound.Content != "hello" {
			t.Errorf("content = %q, want hello", inbound.Content)
		}
		if inbound.SenderID != "123" {
			t.Errorf("senderID = %q, want 123", inbound.SenderID)
		}
		if inbound.ChatID != "456" {
			t.Errorf("chatID = %q, want 456", inbound.ChatID)
		}
	default:
		t.Error("expected inbound message")
	}
}

func TestTelegramChannel_HandleMessage_Rejected(t *testing.T) {
	b := bus.NewMessageBus(10)
	ch, _ := NewTelegramChannel(config.TelegramConfig{
		Token:     "fake-token",
		AllowFrom: []string{"999"},
	}, b)

	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: 123, UserName: "testuser"},
		Chat: &tgbotapi.Chat{ID: 456},
		Text: "hello",
	}

	ch.handleMessage(msg)

	select {
	case <-b.Inbound:
		t.Error("should not receive message from rejected user")
	default:
	}
}

func TestTelegramChannel_HandleMessage_EmptyText(t *testing.T) {
	b := bus.NewMessageBus(10)
	ch, _ := NewTelegramChannel(config.TelegramConfig{Token: "fake-token"}, b)

	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: 123},
		Chat: &tgbotapi.Chat{ID: 456},
		Text: "",
	}

	ch.handleMessage(msg)

	select {
	case <-b.Inbound:
		t.Error("should not send message with empty content")
	default:
	}
}

func TestTelegramChannel_HandleMessage_Caption(t *testing.T) {
	b := bus.NewMessageBus(10)
	ch, _ := NewTelegramChannel(config.TelegramConfig{Token: "fake-token"}, b)

	msg := &tgbotapi.Message{
		From:    &tgbotapi.User{ID: 123},
		Chat:    &tgbotapi.Chat{ID: 456},
		Text:    "",
		Caption: "image caption",
	}

	ch.handleMessage(msg)

	select {
	case inbound := <-b.Inbound:
		if inbound.Content != "image caption" {
			t.Errorf("content = %q, want 'image caption'", inbound.Content)
		}
	default:
		t.Error("expected inbound message")
	}
}

func TestTelegramChannel_HandleMessage_Photo(t *testing.T) {
	b := bus.NewMessageBus(10)
	ch, _ := NewTelegramChannel(config.TelegramConfig{Token: "fake-token"}, b)
	mockBot := newMockBot()
	mockBot.files["photo-large"] = tgbotapi.File{FileID: "photo-large", FilePath: "photos/large.jpg"}
	ch.SetBot(mockBot)

	photoData := []byte{0xff, 0xd8, 0xff, 0xd9}
	ch.httpClient = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader(photoData)),
			Header:     make(http.Header),
		}, nil
	})}

	msg := &tgbotapi.Message{
		From:    &tgbotapi.User{ID: 123},
		Chat:    &tgbotapi.Chat{ID: 456},
		Caption: "photo caption",
		Photo: []tgbotapi.PhotoSize{
			{FileID: "photo-small"},
			{FileID: "photo-large"},
		},
	}

	ch.handleMessage(msg)

	select {
	case inbound := <-b.Inbound:
		if inbound.Content != "photo caption" {
			t.Errorf("content = %q, want 'photo caption'", inbound.Content)
		}
		if len(inbound.Attachments) != 1 {
			t.Fatalf("attachments len = %d, want 1", len(inbound.Attachments))
		}
		att := inbound.Attachments[0]
		if att.MimeType != "image/jpeg" {
			t.Errorf("attachment mime type = %q, want image/jpeg", att.MimeType)
		}
		if !bytes.Equal(att.Data, photoData) {
			t.Errorf("attachment data mismatch")
		}
	default:
		t.Error("expected inbound message")
	}
}

func TestTelegramChannel_HandleMessage_Document(t *testing.T) {
	b := bus.NewMessageBus(10)
	ch, _ := NewTelegramChannel(config.TelegramConfig{Token: "fake-token"}, b)
	mockBot := newMockBot()
	mockBot.files["doc-1"] = tgbotapi.File{FileID: "doc-1", FilePath: "docs/file.pdf"}
	ch.SetBot(mockBot)

	pdfData := []byte("%PDF-1.4\n")
	ch.httpClient = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader(pdfData)),
			Header:     make(http.Header),
		}, nil
	})}

	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: 123},
		Chat: &tgbotapi.Chat{ID: 456},
		Document: &tgbotapi.Document{
			FileID:   "doc-1",
			FileName: "report.pdf",
			MimeType: "application/pdf",
		},
	}

	ch.handleMessage(msg)

	select {
	case inbound := <-b.Inbound:
		if inbound.Content != "" {
			t.Errorf("content = %q, want empty", inbound.Content)
		}
		if len(inbound.Attachments) != 1 {
			t.Fatalf("attachments len = %d, want 1", len(inbound.Attachments))
		}
		att := inbound.Attachments[0]
		if att.Name != "report.pdf" {
			t.Errorf("attachment name = %q, want report.pdf", att.Name)
		}
		if att.MimeType != "application/pdf" {
			t.Errorf("attachment mime type = %q, want application/pdf", att.MimeType)
		}
		if !bytes.Equal(att.Data, pdfData) {
			t.Errorf("attachment data mismatch")
		}
	default:
		t.Error("expected inbound message")
	}
}

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// mockTelegramBot implements TelegramBot for testing.
type mockTelegramBot struct {
	updatesChan chan tgbotapi.Update
	stopped     bool
	sentMsgs    []tgbotapi.Chattable
	sendErr     error
	files       map[string]tgbotapi.File
	self        tgbotapi.User
}

func newMockBot() *mockTelegramBot {
	return &mockTelegramBot{
		updatesChan: make(chan tgbotapi.Update, 10),
		files:       make(map[string]tgbotapi.File),
		self:        tgbotapi.User{UserName: "testbot"},
	}
}

func (m *mockTelegramBot) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return m.updatesChan
}

func (m *mockTelegramBot) StopReceivingUpdates() {
	m.stopped = true
}

func (m *mockTelegramBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.sentMsgs = append(m.sentMsgs, c)
	if m.sendErr != nil {
		return tgbotapi.Message{}, m.sendErr
	}
	return tgbotapi.Message{MessageID: 1}, nil
}

func (m *mockTelegramBot) GetSelf() tgbotapi.User {
	return m.self
}

func (m *mockTelegramBot) GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error) {
	file, ok := m.files[config.FileID]
	if !ok {
		return tgbotapi.File{}, fmt.Errorf("file %q not found", config.FileID)
	}
	return file, nil
}

func TestTelegramChannel_InitBot_Success(t *testing.T) {
	b := bus.NewMessageBus(10)
	mockBot := newMockBot()

	factory := func(token, apiEndpoint string, client *http.Client) (TelegramBot, error) {
		return mockBot, nil
	}

	ch, _ := NewTelegramChannelWithFactory(config.TelegramConfig{Token: "fake-token"}, b, factory)

	if err := ch.initBot(); err != nil {
		t.Errorf("initBot error: %v", err)
	}
	if ch.bot == nil {
		t.Error("bot should be set")
	}
}

func TestTelegramChannel_InitBot_Error(t *testing.T) {
	b := bus.NewMessageBus(10)

	factory := func(token, apiEndpoint string, client *http.Client) (TelegramBot, error) {
		return nil, fmt.Errorf("auth failed")
	}

	ch, _ := NewTelegramChannelWithFactory(config.TelegramConfig{Token: "fake-token"}, b, factory)

	if err := ch.initBot(); err == nil {
		t.Error("expected error from initBot")
	}
}

func TestTelegramChannel_InitBot_InvalidProxy(t *testing.T) {
	b := bus.NewMessageBus(10)

	ch, _ := NewTelegramChannelWithFactory(config.TelegramConfig{
		Token: "fake-token",
		Proxy: "://invalid-url",
	}, b, defaultBotFactory)

	if err := ch.initBot(); err == nil {
		t.Error("expected error for invalid proxy URL")
	}
}

func TestTelegramChannel_Start_Success(t *testing.T) {
	b := bus.NewMessageBus(10)
	mockBot := newMockBot()

	factory := func(token, apiEndpoint string, client *http.Client) (TelegramBot, error) {
		return mockBot, nil
	}

	ch, _ := NewTelegramChannelWithFactory(config.TelegramConfig{Token: "fake-token"}, b, factory)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ch.Start(ctx); err != nil {
		t.Errorf("Start error: %v", err)
	}

	mockBot.updatesChan <- tgbotapi.Update{
		Message: &tgbotapi.Message{
			From: &tgbotapi.User{ID: 123},
			Chat: &tgbotapi.Chat{ID: 456},
			Text: "test message",
		},
	}

	time.Sleep(100 * time.Millisecond)

	select {
	case inbound := <-b.Inbound:
		if inbound.Content != "test message" {
			t.Errorf("content = %q, want 'test message'", inbound.Content)
		}
	default:
		t.Error("expected inbound message")
	}

	ch.Stop()
	if !mockBot.stopped {
		t.Error("bot should be stopped")
	}
}

func TestTelegramChannel_Start_NilMessage(t *testing.T) {
	b := bus.NewMessageBus(10)
	mockBot := newMockBot()

	factory := func(token, apiEndpoint string, client *http.Client) (TelegramBot, error) {
		return mockBot, nil
	}

	ch, _ := NewTelegramChannelWithFactory(config.TelegramConfig{Token: "fake-token"}, b, factory)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch.Start(ctx)

	mockBot.updatesChan <- tgbotapi.Update{Message: nil}

	time.Sleep(50 * time.Millisecond)

	select {
	case <-b.Inbound:
		t.Error("should not receive message for nil update")
	default:
	}
}

func TestTelegramChannel_Send_Success(t *testing.T) {
	b := bus.NewMessageBus(10)
	mockBot := newMockBot()

	ch, _ := NewTelegramChannel(config.TelegramConfig{Token: "fake-token"}, b)
	ch.SetBot(mockBot)

	err := ch.Send(bus.OutboundMessage{ChatID: "123", Content: "hello"})
	if err != nil {
		t.Errorf("Send error: %v", err)
	}

	if len(mockBot.sentMsgs) != 1 {
		t.Errorf("expected 1 sent message, got %d", len(mockBot.sentMsgs))
	}
}

func TestTelegramChannel_Send_WithAttachments(t *testing.T) {
	b := bus.NewMessageBus(10)
	mockBot := newMockBot()

	ch, _ := NewTelegramChannel(config.TelegramConfig{Token: "fake-token"}, b)
	ch.SetBot(mockBot)

	err := ch.Send(bus.OutboundMessage{
		ChatID:  "123",
		Content: "daily report",
		Attachments: []bus.Attachment{
			{Name: "report.pdf", MimeType: "application/pdf", Data: []byte("%PDF-1.4")},
			{Name: "report.mp4", MimeType: "video/mp4", Data: []byte("mp4data")},
		},
	})
	if err != nil {
		t.Errorf("Send error: %v", err)
	}

	// One text message plus one send per attachment.
	if len(mockBot.sentMsgs) != 3 {
		t.Fatalf("expected 3 sent messages, got %d", len(mockBot.sentMsgs))
	}
	if _, ok := mockBot.sentMsgs[1].(tgbotapi.DocumentConfig); !ok {
		t.Errorf("second send = %T, want DocumentConfig", mockBot.sentMsgs[1])
	}
	if _, ok := mockBot.sentMsgs[2].(tgbotapi.VideoConfig); !ok {
		t.Errorf("third send = %T, want VideoConfig", mockBot.sentMsgs[2])
	}
}

func TestTelegramChannel_Send_AttachmentOnly(t *testing.T) {
	b := bus.NewMessageBus(10)
	mockBot := newMockBot()

	ch, _ := NewTelegramChannel(config.TelegramConfig{Token: "fake-token"}, b)
	ch.SetBot(mockBot)

	err := ch.Send(bus.OutboundMessage{
		ChatID:      "123",
		Attachments: []bus.Attachment{{Name: "a.pdf", MimeType: "application/pdf", Data: []byte("x")}},
	})
	if err != nil {
		t.Errorf("Send error: %v", err)
	}
	if len(mockBot.sentMsgs) != 1 {
		t.Errorf("expected 1 sent message, got %d", len(mockBot.sentMsgs))
	}
}

func TestTelegramChannel_Send_LongMessage(t *testing.T) {
	b := bus.NewMessageBus(10)
	mockBot := newMockBot()

	ch, _ := NewTelegramChannel(config.TelegramConfig{Token: "fake-token"}, b)
	ch.SetBot(mockBot)

	longContent := ""
	for i := 0; i < 100; i++ {
		longContent += "This is a long line of text that will be repeated.\n"
	}

	err := ch.Send(bus.OutboundMessage{ChatID: "123", Content: longContent})
	if err != nil {
		t.Errorf("Send error: %v", err)
	}

	if len(mockBot.sentMsgs) < 2 {
		t.Errorf("expected multiple sent messages for long content, got %d", len(mockBot.sentMsgs))
	}
}

func TestTelegramChannel_Send_LongMessageNoNewline(t *testing.T) {
	b := bus.NewMessageBus(10)
	mockBot := newMockBot()

	ch, _ := NewTelegramChannel(config.TelegramConfig{Token: "fake-token"}, b)
	ch.SetBot(mockBot)

	longContent := ""
	for i := 0; i < 5000; i++ {
		longContent += "x"
	}

	err := ch.Send(bus.OutboundMessage{ChatID: "123", Content: longContent})
	if err != nil {
		t.Errorf("Send error: %v", err)
	}

	if len(mockBot.sentMsgs) < 2 {
		t.Errorf("expected multiple messages, got %d", len(mockBot.sentMsgs))
	}
}

type sendCountingBot struct {
	mockBot   *mockTelegramBot
	failFirst bool
	callCount int
}

func (s *sendCountingBot) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return s.mockBot.updatesChan
}

func (s *sendCountingBot) StopReceivingUpdates() {
	s.mockBot.stopped = true
}

func (s *sendCountingBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.callCount++
	if s.failFirst && s.callCount == 1 {
		return tgbotapi.Message{}, fmt.Errorf("HTML parse error")
	}
	return tgbotapi.Message{MessageID: 1}, nil
}

func (s *sendCountingBot) GetSelf() tgbotapi.User {
	return s.mockBot.self
}

func (s *sendCountingBot) GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error) {
	return s.mockBot.GetFile(config)
}

func TestTelegramChannel_Send_HTMLError_Retry(t *testing.T) {
	b := bus.NewMessageBus(10)
	mockBot := newMockBot()

	ch, _ := NewTelegramChannel(config.TelegramConfig{Token: "fake-token"}, b)

	wrapper := &sendCountingBot{mockBot: mockBot, failFirst: true}
	ch.SetBot(wrapper)

	err := ch.Send(bus.OutboundMessage{ChatID: "123", Content: "test"})
	if err != nil {
		t.Errorf("Send should succeed after retry: %v", err)
	}
}

func TestTelegramChannel_Send_BothFail(t *testing.T) {
	b := bus.NewMessageBus(10)
	mockBot := newMockBot()
	mockBot.sendErr = fmt.Errorf("send failed")

	ch, _ := NewTelegramChannel(config.TelegramConfig{Token: "fake-token"}, b)
	ch.SetBot(mockBot)

	err := ch.Send(bus.OutboundMessage{ChatID: "123", Content: "test"})
	if err == nil {
		t.Error("expected error when both sends fail")
	}
}

// chunkFallbackBot fails the HTML-mode send of the second chunk and records
// every message it accepts.
type chunkFallbackBot struct {
	mockBot *mockTelegramBot
	msgs    []tgbotapi.MessageConfig
	calls   int
}

func (c *chunkFallbackBot) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return c.mockBot.updatesChan
}

func (c *chunkFallbackBot) StopReceivingUpdates() {
	c.mockBot.stopped = true
}

func (c *chunkFallbackBot) Send(ch tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, ok := ch.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, fmt.Errorf("unexpected chattable %T", ch)
	}
	c.calls++
	if c.calls == 2 && msg.ParseMode == tgbotapi.ModeHTML {
		return tgbotapi.Message{}, fmt.Errorf("HTML parse error")
	}
	c.msgs = append(c.msgs, msg)
	return tgbotapi.Message{MessageID: c.calls}, nil
}

func (c *chunkFallbackBot) GetSelf() tgbotapi.User {
	return c.mockBot.self
}

func (c *chunkFallbackBot) GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error) {
	return c.mockBot.GetFile(config)
}

func TestTelegramChannel_Send_ChunkFallbackStaysChunked(t *testing.T) {
	b := bus.NewMessageBus(10)
	mockBot := newMockBot()

	ch, _ := NewTelegramChannel(config.TelegramConfig{Token: "fake-token"}, b)
	wrapper := &chunkFallbackBot{mockBot: mockBot}
	ch.SetBot(wrapper)

	first := strings.Repeat("a", 3000)
	second := strings.Repeat("b", 3000)
	content := first + "\n" + second

	if err := ch.Send(bus.OutboundMessage{ChatID: "123", Content: content}); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	if len(wrapper.msgs) != 2 {
		t.Fatalf("expected 2 delivered messages, got %d", len(wrapper.msgs))
	}
	for i, msg := range wrapper.msgs {
		if len(msg.Text) > 4000 {
			t.Errorf("message %d is %d chars, exceeds the per-message limit", i, len(msg.Text))
		}
	}
	if wrapper.msgs[0].Text != first {
		t.Errorf("first chunk altered: %d chars", len(wrapper.msgs[0].Text))
	}
	// The fallback resends only the failed chunk, plain.
	if wrapper.msgs[1].ParseMode != "" {
		t.Errorf("fallback parse mode = %q, want empty", wrapper.msgs[1].ParseMode)
	}
	if !strings.HasSuffix(wrapper.msgs[1].Text, second) || strings.Contains(wrapper.msgs[1].Text, "aaa") {
		t.Errorf("fallback resent the wrong content: %d chars", len(wrapper.msgs[1].Text))
	}
}
