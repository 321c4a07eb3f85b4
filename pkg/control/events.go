package control

import (
	"context"
	"fmt"

	"github.com/teslashibe/go-pathfinder/pkg/fusion"
	"github.com/teslashibe/go-pathfinder/pkg/input"
	"github.com/teslashibe/go-pathfinder/pkg/speech"
)

// handleEvents applies every queued input event and reports whether one of
// them asked to quit. Events after a quit are still applied.
func (l *Loop) handleEvents() bool {
	if l.bus == nil {
		return false
	}
	quit := false
	for _, e := range l.bus.Drain() {
		if e.Name == input.Quit {
			quit = true
			continue
		}
		guard(l.logger, "event "+string(e.Name), func() { l.apply(e) })
	}
	return quit
}

func (l *Loop) apply(e input.Event) {
	muted := l.narrator.Muted()

	switch e.Name {
	case input.SOSPress:
		if l.sos != nil {
			l.sos.Press()
		}
	case input.SOSTrigger:
		if l.sos != nil {
			l.sos.TriggerAsync(e.Message)
		}
	case input.SpeechTest:
		if !muted {
			l.say(SpeechTestPhrase, speakWindow)
		}
	case input.Mute:
		if !l.narrator.ToggleMute() {
			l.say(UnmutedPhrase, speakWindow)
		}
		l.logger.Info("🔇 mute toggled", "muted", l.narrator.Muted())
	case input.NextVoice:
		if name, ok := l.voice.NextVoice(); ok {
			l.logger.Info("voice changed", "voice", name)
			if !muted {
				l.say("Voice "+name, speakWindow)
			}
		}
	case input.RateUp:
		l.logger.Info("speech rate", "wpm", l.voice.AdjustRate(10))
	case input.RateDown:
		l.logger.Info("speech rate", "wpm", l.voice.AdjustRate(-10))
	case input.VolumeUp:
		l.logger.Info("speech volume", "volume", l.voice.AdjustVolume(0.05))
	case input.VolumeDown:
		l.logger.Info("speech volume", "volume", l.voice.AdjustVolume(-0.05))
	case input.SimDistance, input.SimClear:
		sim, ok := l.rng.(Simulator)
		if !ok {
			l.logger.Warn("range sensor is not simulated, ignoring", "event", e.String())
			return
		}
		if e.Name == input.SimClear {
			sim.ClearOverride()
			l.logger.Info("[SIM] distance auto-oscillation enabled")
		} else {
			sim.SetOverride(e.Value)
			l.logger.Info(fmt.Sprintf("[SIM] distance set to %.1f m", e.Value))
		}
	case input.Repeat:
		l.narrator.Repeat()
	default:
		l.logger.Debug("unhandled event", "event", e.String())
	}
}

// pollListen collects a finished voice listen and starts a new one every
// ListenEvery cycles. Listening runs off the loop goroutine so a slow
// recognizer never stalls a cycle.
func (l *Loop) pollListen(ctx context.Context) {
	if l.listener == nil || l.cfg.ListenEvery <= 0 {
		return
	}

	select {
	case res := <-l.listenCh:
		l.listening = false
		if res.ok {
			l.applyCommand(res.cmd)
		}
	default:
	}

	if l.listening || l.cycle%uint64(l.cfg.ListenEvery) != 0 {
		return
	}
	l.listening = true
	go func() {
		var res listenResult
		defer func() {
			if r := recover(); r != nil {
				l.logger.Error("recovered panic", "in", "listener", "panic", r)
				res = listenResult{}
			}
			l.listenCh <- res
		}()
		res.cmd, res.ok = l.listener.ListenOnce(ctx, l.cfg.ListenTimeout)
	}()
}

func (l *Loop) applyCommand(cmd speech.Command) {
	l.logger.Info("🎙️ voice command", "command", cmd)
	switch cmd {
	case speech.CommandHelp:
		if l.sos != nil {
			l.sos.TriggerAsync(VoiceHelpMessage)
		}
	case speech.CommandRepeat:
		l.narrator.Repeat()
	case speech.CommandStop:
		l.narrator.SetMuted(true)
	case speech.CommandLeft:
		l.describeSide(fusion.Left)
	case speech.CommandRight:
		l.describeSide(fusion.Right)
	}
}

// describeSide answers "left" or "right" with whether that sector is clear.
func (l *Loop) describeSide(s fusion.Sector) {
	state := "clear"
	if l.fused[s] {
		state = "blocked"
	}
	l.say(s.String()+" "+state, speakWindow)
}
