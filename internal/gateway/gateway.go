package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/atlasbrief/atlasbrief/internal/brain"
	"github.com/atlasbrief/atlasbrief/internal/bus"
	"github.com/atlasbrief/atlasbrief/internal/channel"
	"github.com/atlasbrief/atlasbrief/internal/config"
	"github.com/atlasbrief/atlasbrief/internal/cron"
	"github.com/atlasbrief/atlasbrief/internal/history"
	"github.com/atlasbrief/atlasbrief/internal/media"
	"github.com/atlasbrief/atlasbrief/internal/metrics"
	"github.com/atlasbrief/atlasbrief/internal/render"
	"github.com/atlasbrief/atlasbrief/internal/report"
	"github.com/atlasbrief/atlasbrief/internal/store"
	"github.com/atlasbrief/atlasbrief/internal/task"
)

const dayEndJobKind = "day-end"

// Options allow tests to inject fakes for the external collaborators.
type Options struct {
	Brain      brain.Brain
	Store      store.Store
	SignalChan chan os.Signal
}

type Gateway struct {
	cfg      *config.Config
	bus      *bus.MessageBus
	brain    brain.Brain
	archive  *store.Archive
	journal  *report.Journal
	history  *history.Index
	channels *channel.ChannelManager
	cron     *cron.Service
	metrics  *metrics.Metrics
	speech   *media.SpeechClient
	composer *media.VideoComposer

	httpServer *http.Server
	signalChan chan os.Signal
}

// New creates a Gateway with default options.
func New(cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions creates a Gateway with custom options for testing.
func NewWithOptions(cfg *config.Config, opts Options) (*Gateway, error) {
	g := &Gateway{cfg: cfg, metrics: metrics.New()}

	g.bus = bus.NewMessageBus(config.DefaultBufSize)

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("load report timezone: %w", err)
	}
	clock, err := report.NewClock(cfg.Report.CutoffHour, cfg.Report.CutoffMinute, loc)
	if err != nil {
		return nil, fmt.Errorf("configure day clock: %w", err)
	}
	g.journal = report.NewJournal(clock)

	st := opts.Store
	if st == nil {
		st, err = newStore(cfg)
		if err != nil {
			return nil, fmt.Errorf("create file store: %w", err)
		}
	}
	g.archive = store.NewArchive(st)

	b := opts.Brain
	if b == nil {
		b, err = brain.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("create classifier: %w", err)
		}
	}
	g.brain = b

	dbPath := cfg.History.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(config.ConfigDir(), "data", "history.db")
	}
	idx, err := history.NewIndex(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history index: %w", err)
	}
	g.history = idx

	if cfg.Media.Enabled {
		g.speech = media.NewSpeechClient(cfg.Media)
		g.composer = media.NewVideoComposer(cfg.Media.FFmpegPath)
	}

	cronStorePath := cfg.Gateway.JobsPath
	if cronStorePath == "" {
		cronStorePath = filepath.Join(config.ConfigDir(), "data", "cron", "jobs.json")
	}
	g.cron = cron.NewService(cronStorePath, loc)
	g.cron.OnJob = g.handleJob

	chMgr, err := channel.NewChannelManager(cfg.Channels, g.bus)
	if err != nil {
		_ = g.history.Close()
		return nil, fmt.Errorf("create channel manager: %w", err)
	}
	g.channels = chMgr

	mux := http.NewServeMux()
	mux.Handle("/metrics", g.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	g.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	g.signalChan = opts.SignalChan
	return g, nil
}

func newStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Type {
	case "drive":
		return store.NewDriveStore(context.Background(), cfg.Store.CredentialsFile, cfg.Store.RootFolderID)
	default:
		return store.NewDirStore(cfg.Store.Path)
	}
}

func (g *Gateway) policy(name string) task.Policy {
	return task.Policy{
		Name:           name,
		MaxTries:       config.DefaultMaxTries,
		AttemptTimeout: time.Duration(config.DefaultCallTimeoutSec) * time.Second,
	}
}

// ensureDayEndJob registers the cutoff-time cron job once; the job store
// keeps it across restarts.
func (g *Gateway) ensureDayEndJob() error {
	if _, ok := g.cron.FindJob(dayEndJobKind); ok {
		return nil
	}
	expr := fmt.Sprintf("0 %d %d * * *", g.cfg.Report.CutoffMinute, g.cfg.Report.CutoffHour)
	_, err := g.cron.AddJob("day-end-report", cron.Schedule{Kind: "cron", Expr: expr}, cron.Payload{Kind: dayEndJobKind})
	return err
}

func (g *Gateway) handleJob(job cron.Job) (string, error) {
	switch job.Payload.Kind {
	case dayEndJobKind:
		return g.finalizeCurrentDay(context.Background())
	case "notify":
		g.bus.Outbound <- bus.OutboundMessage{
			Channel: job.Payload.Channel,
			ChatID:  job.Payload.ChatID,
			Content: job.Payload.Message,
		}
		return "sent", nil
	default:
		return "", fmt.Errorf("unknown job kind %q", job.Payload.Kind)
	}
}

func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go g.bus.DispatchOutbound(ctx)

	if err := g.channels.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	log.Printf("[gateway] channels started: %v", g.channels.EnabledChannels())

	if err := g.cron.Start(ctx); err != nil {
		log.Printf("[gateway] cron start warning: %v", err)
	}
	if err := g.ensureDayEndJob(); err != nil {
		log.Printf("[gateway] ensure day-end job warning: %v", err)
	}

	go func() {
		if err := g.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[gateway] metrics server error: %v", err)
		}
	}()

	go g.processLoop(ctx)

	log.Printf("[gateway] running on %s", g.httpServer.Addr)

	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}
	<-sigCh

	log.Printf("[gateway] shutting down...")
	return g.Shutdown()
}

func (g *Gateway) processLoop(ctx context.Context) {
	for {
		select {
		case msg := <-g.bus.Inbound:
			log.Printf("[gateway] inbound from %s/%s: %s", msg.Channel, msg.SenderID, truncate(msg.Content, 80))
			g.handleInbound(ctx, msg)
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) handleInbound(ctx context.Context, msg bus.InboundMessage) {
	reply := func(text string) {
		g.bus.Outbound <- bus.OutboundMessage{
			Channel: msg.Channel,
			ChatID:  msg.ChatID,
			Content: text,
		}
	}

	attachmentNames := make([]string, 0, len(msg.Attachments))
	for _, att := range msg.Attachments {
		attachmentNames = append(attachmentNames, att.Name)
	}

	cls, err := task.Do(ctx, g.policy("classifier"), func(ctx context.Context) (*brain.Classification, error) {
		c, err := g.brain.Classify(ctx, brain.Submission{Text: msg.Content, Attachments: attachmentNames})
		if err != nil && errors.Is(err, brain.ErrRejected) {
			return nil, task.Permanent(err)
		}
		return c, err
	})
	if err != nil {
		switch {
		case errors.Is(err, brain.ErrRejected):
			g.metrics.EventRejected("classifier")
			reply(fmt.Sprintf("Not recorded: %v", err))
		case errors.Is(err, task.ErrUnavailable):
			g.metrics.CollaboratorFailed("classifier")
			log.Printf("[gateway] classifier unavailable: %v", err)
			reply("The classifier is unavailable right now. Please try again later.")
		default:
			log.Printf("[gateway] classify error: %v", err)
			reply("Sorry, I could not process that submission.")
		}
		return
	}

	event, err := report.NewEvent(report.EventParams{
		Summary:      cls.Summary,
		Continent:    cls.Continent,
		Type:         cls.EventType,
		Importance:   cls.Importance,
		Deaths:       cls.Deaths,
		Declarations: cls.Declarations,
		Links:        cls.Links,
		Analysis:     cls.Analysis,
		Timestamp:    msg.Timestamp,
	})
	if err != nil {
		var verr *report.ValidationError
		if errors.As(err, &verr) {
			g.metrics.EventRejected("validation")
			reply(fmt.Sprintf("Not recorded: %v", err))
			return
		}
		log.Printf("[gateway] build event error: %v", err)
		reply("Sorry, I could not process that submission.")
		return
	}

	rep, err := g.journal.For(msg.Timestamp)
	if err != nil {
		g.metrics.EventRejected("validation")
		reply(fmt.Sprintf("Not recorded: %v", err))
		return
	}
	day := report.DayKey(rep.Date())

	if err := g.persistEvent(ctx, day, msg, event); err != nil {
		g.metrics.CollaboratorFailed("store")
		log.Printf("[gateway] persist event: %v", err)
		reply("The file store is unavailable right now. Please try again later.")
		return
	}

	if err := rep.AddEvent(event); err != nil {
		log.Printf("[gateway] append event to %s: %v", day, err)
		reply("Sorry, today's report is already closed.")
		return
	}

	if err := g.history.InsertEvent(day, event); err != nil {
		log.Printf("[gateway] history insert warning: %v", err)
	}

	g.metrics.EventAccepted()
	g.metrics.SetOpenDays(len(g.journal.Days()))

	reply(report.ChatSummary(event))
}

// persistEvent archives the raw submission and the classified record. The
// raw copy is best effort; a classified record that cannot be stored fails
// the submission.
func (g *Gateway) persistEvent(ctx context.Context, day string, msg bus.InboundMessage, event report.Event) error {
	if msg.Content != "" {
		_, err := task.Do(ctx, g.policy("store"), func(ctx context.Context) (string, error) {
			return g.archive.SaveRaw(ctx, day, "submission.txt", []byte(msg.Content), "text/plain")
		})
		if err != nil {
			log.Printf("[gateway] archive raw text warning: %v", err)
		}
	}
	for _, att := range msg.Attachments {
		att := att
		_, err := task.Do(ctx, g.policy("store"), func(ctx context.Context) (string, error) {
			return g.archive.SaveRaw(ctx, day, att.Name, att.Data, att.MimeType)
		})
		if err != nil {
			log.Printf("[gateway] archive attachment %s warning: %v", att.Name, err)
		}
	}

	record, err := json.MarshalIndent(event, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal event record: %w", err)
	}
	_, err = task.Do(ctx, g.policy("store"), func(ctx context.Context) (string, error) {
		return g.archive.SaveClassified(ctx, day, event.Continent, event.Type, record)
	})
	return err
}

// finalizeCurrentDay closes out the logical day the cutoff just ended. The
// job fires at the cutoff, so the current instant already buckets into the
// next logical day; the report to close is the previous one. This also holds
// when the job is delayed past midnight.
func (g *Gateway) finalizeCurrentDay(ctx context.Context) (string, error) {
	day, err := g.journal.Clock().LogicalDay(time.Now())
	if err != nil {
		return "", err
	}
	return g.finalizeDay(ctx, day.AddDate(0, 0, -1))
}

func (g *Gateway) finalizeDay(ctx context.Context, day time.Time) (string, error) {
	dayKey := report.DayKey(day)

	rep := g.journal.Peek(day)
	if rep == nil || rep.Len() == 0 {
		log.Printf("[gateway] no events for %s, skipping report", dayKey)
		return "no events", nil
	}

	// Continuity inputs are best effort; the report renders without them.
	histCtx, err := task.Do(ctx, g.policy("store"), func(ctx context.Context) (string, error) {
		return g.archive.HistoricalContext(ctx)
	})
	if err != nil {
		log.Printf("[gateway] historical context warning: %v", err)
	} else {
		rep.SetHistoricalContext(histCtx)
	}

	if entries, err := g.history.Timeline(dayKey, g.cfg.Report.TimelineWindow); err != nil {
		log.Printf("[gateway] timeline warning: %v", err)
	} else {
		rep.SetTimeline(entries)
	}

	doc, err := rep.RenderDocument()
	if err != nil {
		return "", fmt.Errorf("render document for %s: %w", dayKey, err)
	}
	pdf, err := render.PDF(doc)
	if err != nil {
		return "", fmt.Errorf("render pdf for %s: %w", dayKey, err)
	}
	g.metrics.ReportRendered()

	pdfName := fmt.Sprintf("report-%s.pdf", dayKey)
	_, err = task.Do(ctx, g.policy("store"), func(ctx context.Context) (string, error) {
		return g.archive.SaveReport(ctx, dayKey, pdfName, pdf, "application/pdf")
	})
	if err != nil {
		g.metrics.CollaboratorFailed("store")
		log.Printf("[gateway] save report %s warning: %v", dayKey, err)
	}

	g.deliverReport(ctx, doc, dayKey, pdfName, pdf, rep.Len())

	g.journal.Close(day)
	g.metrics.SetOpenDays(len(g.journal.Days()))

	return fmt.Sprintf("report %s: %d events", dayKey, rep.Len()), nil
}

func (g *Gateway) deliverReport(ctx context.Context, doc *report.Document, dayKey, pdfName string, pdf []byte, eventCount int) {
	chName := g.cfg.Report.DeliverChannel
	chatID := g.cfg.Report.DeliverTo
	if chName == "" || chatID == "" {
		log.Printf("[gateway] no delivery target configured for %s", dayKey)
		return
	}

	attachments := []bus.Attachment{{Name: pdfName, MimeType: "application/pdf", Data: pdf}}

	if video := g.produceVideo(ctx, doc, dayKey); video != nil {
		attachments = append(attachments, bus.Attachment{
			Name:     fmt.Sprintf("report-%s.mp4", dayKey),
			MimeType: "video/mp4",
			Data:     video,
		})
	}

	g.bus.Outbound <- bus.OutboundMessage{
		Channel:     chName,
		ChatID:      chatID,
		Content:     fmt.Sprintf("**%s**\n%d events recorded.", doc.Title, eventCount),
		Attachments: attachments,
	}
}

// produceVideo narrates the day's report. Any failure downgrades delivery
// to the document alone.
func (g *Gateway) produceVideo(ctx context.Context, doc *report.Document, dayKey string) []byte {
	if !g.cfg.Media.Enabled || g.speech == nil || g.composer == nil {
		return nil
	}

	script, err := task.Do(ctx, g.policy("narrator"), func(ctx context.Context) (string, error) {
		return g.brain.Script(ctx, reportText(doc))
	})
	if err != nil {
		g.metrics.CollaboratorFailed("narrator")
		log.Printf("[gateway] narration script warning: %v", err)
		return nil
	}

	audio, err := task.Do(ctx, g.policy("tts"), func(ctx context.Context) ([]byte, error) {
		return g.speech.Speech(ctx, script)
	})
	if err != nil {
		g.metrics.CollaboratorFailed("tts")
		log.Printf("[gateway] speech synthesis warning: %v", err)
		return nil
	}

	video, err := g.composer.ComposeVideo(ctx, audio, doc.Title)
	if err != nil {
		g.metrics.CollaboratorFailed("ffmpeg")
		log.Printf("[gateway] video compose warning: %v", err)
		return nil
	}

	g.metrics.MediaProduced()
	return video
}

// reportText flattens a document into plain text for the narrator.
func reportText(doc *report.Document) string {
	text := doc.Title + "\n\n"
	if doc.HistoricalContext != "" {
		text += doc.HistoricalContext + "\n\n"
	}
	for _, sec := range doc.Events {
		text += sec.Summary + "\n"
		if sec.Analysis != "" {
			text += sec.Analysis + "\n"
		}
		text += "\n"
	}
	return text
}

// RenderDay rebuilds one day's report from the history index, for on-demand
// rendering after the live accumulator is gone.
func (g *Gateway) RenderDay(ctx context.Context, dayKey string) ([]byte, error) {
	date, err := time.Parse(report.DayLayout, dayKey)
	if err != nil {
		return nil, fmt.Errorf("parse day %q: %w", dayKey, err)
	}

	events, err := g.history.EventsForDay(dayKey)
	if err != nil {
		return nil, fmt.Errorf("load events for %s: %w", dayKey, err)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("no events recorded for %s", dayKey)
	}

	rep := report.New(date)
	for _, e := range events {
		if err := rep.AddEvent(e); err != nil {
			return nil, fmt.Errorf("rebuild report for %s: %w", dayKey, err)
		}
	}

	if histCtx, err := g.archive.HistoricalContext(ctx); err != nil {
		log.Printf("[gateway] historical context warning: %v", err)
	} else {
		rep.SetHistoricalContext(histCtx)
	}
	if entries, err := g.history.Timeline(dayKey, g.cfg.Report.TimelineWindow); err != nil {
		log.Printf("[gateway] timeline warning: %v", err)
	} else {
		rep.SetTimeline(entries)
	}

	doc, err := rep.RenderDocument()
	if err != nil {
		return nil, err
	}
	return render.PDF(doc)
}

func (g *Gateway) Shutdown() error {
	g.cron.Stop()
	_ = g.channels.StopAll()

	if g.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[gateway] metrics server shutdown warning: %v", err)
		}
	}

	if g.history != nil {
		if err := g.history.Close(); err != nil {
			log.Printf("[gateway] close history index warning: %v", err)
		}
	}

	log.Printf("[gateway] shutdown complete")
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
