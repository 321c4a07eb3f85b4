package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/teslashibe/go-pathfinder/internal/httpc"
	"github.com/teslashibe/go-pathfinder/internal/mqttc"
	"github.com/teslashibe/go-pathfinder/internal/serialport"
	"github.com/teslashibe/go-pathfinder/pkg/audioio"
	"github.com/teslashibe/go-pathfinder/pkg/control"
	"github.com/teslashibe/go-pathfinder/pkg/haptics"
	"github.com/teslashibe/go-pathfinder/pkg/input"
	"github.com/teslashibe/go-pathfinder/pkg/location"
	"github.com/teslashibe/go-pathfinder/pkg/narration"
	"github.com/teslashibe/go-pathfinder/pkg/ranging"
	"github.com/teslashibe/go-pathfinder/pkg/sos"
	"github.com/teslashibe/go-pathfinder/pkg/speech"
	"github.com/teslashibe/go-pathfinder/pkg/tts"
	"github.com/teslashibe/go-pathfinder/pkg/web"
)

// initBroker connects to MQTT when a broker is configured. An injected
// broker wins over the config.
func (a *App) initBroker(context.Context) error {
	if a.broker != nil {
		a.logger.Info("📡 MQTT: injected broker")
		return nil
	}
	mc := a.config.MQTT
	if mc.Broker == "" {
		a.logger.Info("📡 MQTT disabled")
		return nil
	}
	client, err := mqttc.Connect(mqttc.Config{
		Broker:   mc.Broker,
		ClientID: mc.ClientID,
		Username: mc.Username,
		Password: mc.Password,
	}, a.logger)
	if err != nil {
		return err
	}
	a.broker = client
	a.ownsBroker = true
	a.logger.Info("📡 MQTT connected", "broker", mc.Broker)
	return nil
}

func (a *App) initVision(context.Context) error {
	if a.openVision == nil {
		return ErrNoVision
	}
	src, det, err := a.openVision(a.config.Vision, a.logger)
	if err != nil {
		return err
	}
	a.source, a.detector = src, det
	a.logger.Info("📷 vision ready", "model", a.config.Vision.Model, "camera", a.config.Vision.Camera)
	return nil
}

func (a *App) initRange(context.Context) error {
	rc := a.config.Range
	switch rc.Mode {
	case "serial":
		s, err := ranging.OpenSerial(rc.Port, serialport.Options{BaudRate: rc.Baud}, a.logger)
		if err != nil {
			return err
		}
		a.rng = s
	default:
		a.rng = ranging.NewSimulated(a.clk)
	}
	a.logger.Info("📏 range sensor ready", "mode", rc.Mode)
	return nil
}

func (a *App) initHaptics(context.Context) error {
	hc := a.config.Haptics
	var t haptics.Transport
	switch hc.Transport {
	case "mqtt":
		if a.broker == nil {
			return fmt.Errorf("haptics transport mqtt needs a broker")
		}
		t = haptics.NewMQTTTransport(a.broker, hc.Topic)
	case "serial":
		st, err := haptics.OpenSerialTransport(hc.Port, serialport.Options{BaudRate: hc.Baud})
		if err != nil {
			return err
		}
		t = st
	default:
		t = haptics.NewLogTransport(a.logger)
	}
	a.haptics = haptics.NewDriver(t, a.clk, a.logger)
	a.logger.Info("📳 haptics ready", "transport", hc.Transport)
	return nil
}

// newTTS builds the synthesis provider. Edge and OpenAI fall back to each
// other when both are usable.
func (a *App) newTTS() (tts.Provider, error) {
	sc := a.config.Speech
	opts := []tts.Option{tts.WithLogger(a.logger)}
	if sc.Voice != "" {
		opts = append(opts, tts.WithVoice(sc.Voice))
	}

	switch sc.Engine {
	case "mock":
		return tts.NewMock(), nil
	case "openai":
		oa, err := tts.NewOpenAI(append(opts, tts.WithAPIKey(sc.OpenAIKey))...)
		if err != nil {
			return nil, err
		}
		edge, err := tts.NewEdge(tts.WithLogger(a.logger))
		if err != nil {
			return oa, nil
		}
		return tts.NewChain(a.logger, oa, edge)
	default:
		edge, err := tts.NewEdge(opts...)
		if err != nil {
			return nil, err
		}
		if sc.OpenAIKey == "" {
			return edge, nil
		}
		oa, err := tts.NewOpenAI(tts.WithLogger(a.logger), tts.WithAPIKey(sc.OpenAIKey))
		if err != nil {
			return edge, nil
		}
		return tts.NewChain(a.logger, edge, oa)
	}
}

func (a *App) audioConfig() audioio.Config {
	ac := audioio.DefaultConfig()
	if a.config.Speech.Player != "" {
		ac.Backend = audioio.Backend(a.config.Speech.Player)
	}
	return ac
}

func (a *App) initSpeech(context.Context) error {
	provider, err := a.newTTS()
	if err != nil {
		return err
	}
	player, err := audioio.NewPlayer(a.audioConfig(), a.logger)
	if err != nil {
		return err
	}

	sc := a.config.Speech
	opts := []speech.Option{
		speech.WithClock(a.clk),
		speech.WithLogger(a.logger),
		speech.WithQueueSize(sc.QueueSize),
		speech.WithVolume(sc.Volume),
	}
	if sc.Voice != "" {
		opts = append(opts, speech.WithVoice(sc.Voice))
	} else if sc.VoiceIndex > 0 {
		opts = append(opts, speech.WithVoiceIndex(sc.VoiceIndex))
	}
	if sc.Rate > 0 {
		opts = append(opts, speech.WithRate(sc.Rate))
	}
	a.speech = speech.NewOutput(provider, player, opts...)
	a.speech.Start()
	a.logger.Info("🎙️  speech ready", "engine", sc.Engine, "voice", a.speech.Voice())
	return nil
}

// newGenerator picks the phrase generator. An empty provider means the first
// one with a key, Gemini before OpenAI.
func (a *App) newGenerator() (narration.Generator, error) {
	nc := a.config.Narration
	gemini := func() (narration.Generator, error) {
		return narration.NewGemini(nc.GeminiKey,
			narration.WithGeminiModel(nc.GeminiModel),
			narration.WithGeminiHTTPClient(httpc.Client),
			narration.WithGeminiLogger(a.logger))
	}
	openai := func() (narration.Generator, error) {
		return narration.NewOpenAI(nc.OpenAIKey, nc.OpenAIBaseURL, nc.OpenAIModel, a.logger)
	}

	switch strings.ToLower(nc.Provider) {
	case "none":
		return nil, nil
	case "gemini":
		return gemini()
	case "openai":
		return openai()
	}

	var gens []narration.Generator
	if nc.GeminiKey != "" {
		if g, err := gemini(); err == nil {
			gens = append(gens, g)
		}
	}
	if nc.OpenAIKey != "" {
		if g, err := openai(); err == nil {
			gens = append(gens, g)
		}
	}
	switch len(gens) {
	case 0:
		return nil, nil
	case 1:
		return gens[0], nil
	default:
		return narration.NewChain(a.logger, gens...), nil
	}
}

func (a *App) initNarration(context.Context) error {
	gen, err := a.newGenerator()
	if err != nil {
		return err
	}
	nc := a.config.Narration
	cfg := narration.DefaultConfig()
	cfg.Async = nc.Async
	if nc.SyncBudget > 0 {
		cfg.SyncBudget = nc.SyncBudget
	}
	if nc.AsyncBudget > 0 {
		cfg.AsyncBudget = nc.AsyncBudget
	}
	a.narrator = narration.NewScheduler(cfg, gen, a.speech, a.clk, a.logger)

	if gen == nil {
		a.logger.Info("💬 narration: templates only")
	} else {
		a.logger.Info("💬 narration ready", "provider", nc.Provider, "async", nc.Async)
	}
	return nil
}

func (a *App) initListener(context.Context) error {
	sc := a.config.Speech
	if !sc.Listen {
		return nil
	}
	if sc.OpenAIKey == "" {
		a.logger.Warn("⚠️  voice commands need OPENAI_API_KEY, listening disabled")
		return nil
	}
	rec, err := audioio.NewRecorder(a.audioConfig(), a.logger)
	if err != nil {
		a.logger.Warn("⚠️  microphone unavailable, listening disabled", "error", err)
		return nil
	}
	a.listener = speech.NewWhisperListener(sc.OpenAIKey, a.config.Narration.OpenAIBaseURL, sc.STTModel, rec, a.logger)
	a.logger.Info("👂 voice commands enabled", "model", sc.STTModel)
	return nil
}

// initLocation opens the GPS. A missing receiver is not fatal: alerts go
// out without a position.
func (a *App) initLocation(context.Context) error {
	gc := a.config.GPS
	a.locator = location.Unavailable{}
	if gc.Port == "" {
		return nil
	}
	gps, err := location.OpenGPS(gc.Port, gc.Baud, a.logger)
	if err != nil {
		a.logger.Warn("⚠️  GPS unavailable", "port", gc.Port, "error", err)
		return nil
	}
	a.gps = gps
	a.locator = gps
	a.logger.Info("🛰️  GPS ready", "port", gc.Port)
	return nil
}

func (a *App) initSOS(ctx context.Context) error {
	sc := a.config.SOS
	var pub mqttc.Publisher
	if a.broker != nil {
		pub = a.broker
	}
	channels := sos.BuildChannels(ctx, sos.Credentials{
		TwilioSID:          sc.TwilioSID,
		TwilioAuth:         sc.TwilioAuth,
		TwilioFrom:         sc.TwilioFrom,
		TwilioWhatsAppFrom: sc.TwilioWhatsAppFrom,
		Contact:            sc.Contact,
		ContactWhatsApp:    sc.ContactWhatsApp,
		Email:              sc.Email,
		SMTPHost:           sc.SMTPHost,
		SMTPPort:           sc.SMTPPort,
		SMTPUser:           sc.SMTPUser,
		SMTPPass:           sc.SMTPPass,
		GmailCredentials:   sc.GmailCredentials,
		GmailToken:         sc.GmailToken,
		MQTTTopic:          sc.Topic,
	}, pub, httpc.Client, a.logger)

	cfg := sos.DefaultConfig()
	cfg.Enabled = sc.Enabled
	cfg.PressWindow = sc.PressWindow
	cfg.PressCount = sc.PressCount
	cfg.Retries = sc.Retries
	cfg.Backoff = sc.Backoff
	a.sos = sos.NewDispatcher(cfg, channels, a.locator, a.speech, a.clk, a.logger)

	if sc.Enabled && len(channels) == 0 {
		a.logger.Warn("⚠️  SOS enabled but no alert channel is configured")
	}
	a.logger.Info("🚨 SOS ready", "enabled", sc.Enabled, "channels", sos.ChannelNames(channels))
	return nil
}

func (a *App) initInput(context.Context) error {
	a.input = input.NewBus(input.DefaultQueueSize, a.logger)
	if a.broker == nil || a.config.MQTT.ButtonTopic == "" {
		return nil
	}
	if err := input.SubscribeButton(a.broker, a.config.MQTT.ButtonTopic, a.input, a.logger); err != nil {
		return err
	}
	a.logger.Info("🔘 SOS button subscribed", "topic", a.config.MQTT.ButtonTopic)
	return nil
}

func (a *App) initDashboard(context.Context) error {
	dc := a.config.Dashboard
	if !dc.Enabled {
		return nil
	}
	a.web = web.NewServer(dc.Addr, a.input, a.logger)
	a.logger.Info("🌐 dashboard configured", "addr", dc.Addr)
	return nil
}

func (a *App) initOverlay(context.Context) error {
	if !(a.config.Debug || a.config.Vision.Window) || a.openOverlay == nil {
		return nil
	}
	ov, err := a.openOverlay()
	if err != nil {
		a.logger.Warn("⚠️  debug window unavailable", "error", err)
		return nil
	}
	a.overlay = ov
	return nil
}

// loopConfig maps the file config onto the loop cadences.
func (a *App) loopConfig() control.Config {
	lc := a.config.Loop
	cfg := control.DefaultConfig()
	cfg.Period = lc.Period()
	cfg.DetectEvery = lc.DetectEvery
	cfg.HapticPeriod = lc.HapticPeriod()
	cfg.ListenEvery = lc.ListenEvery
	cfg.ListenTimeout = lc.ListenTimeout
	cfg.DangerDistance = lc.DangerDistance
	cfg.Confidence = a.config.Vision.Confidence
	cfg.ImageSize = a.config.Vision.ImageSize
	cfg.ObstaclesOnly = a.config.Vision.ObstaclesOnly
	cfg.MaxRange = a.config.Haptics.MaxRange
	cfg.RangeSamples = a.config.Range.Samples
	return cfg
}

func (a *App) initLoop(context.Context) error {
	deps := control.Deps{
		Source:   a.source,
		Detector: a.detector,
		Range:    a.rng,
		Haptics:  a.haptics,
		Narrator: a.narrator,
		Speech:   a.speech,
		Listener: a.listener,
		SOS:      a.sos,
		Input:    a.input,
		Overlay:  a.overlay,
		Clock:    a.clk,
		Logger:   a.logger,
	}
	if a.web != nil {
		deps.Status = a.web
	}
	loop, err := control.New(a.loopConfig(), deps)
	if err != nil {
		return err
	}
	a.loop = loop
	return nil
}
