package main

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"example.com/voice_practice/pkg/audio"
	"example.com/voice_practice/pkg/protocol"
	"example.com/voice_practice/pkg/stt"
)

// maxTurnSamples caps the audio buffered for one turn (60 s at 16 kHz)
const maxTurnSamples = 60 * audio.TargetSampleRate

// Peer represents a connected practice client. Practice fields are only
// touched by the connection's read loop.
type Peer struct {
	ID       string
	Conn     *websocket.Conn
	Theme    string
	Scenario string
	Sentence string // current practice sentence
	paused   bool
	pcm      []int16
	tutor    Tutor
	stt      stt.Transcriber // open for the current turn, nil otherwise
	sttDown  bool            // transcriber failed during the current turn
	mu       sync.Mutex      // serializes writes
}

// SendMessage writes one control message to the peer
func (p *Peer) SendMessage(msg protocol.Inbound) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.Conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return p.Conn.WriteMessage(websocket.TextMessage, data)
}

// CloseWith sends a close frame carrying reason
func (p *Peer) CloseWith(code int, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	return p.Conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

// appendAudio buffers a PCM16LE chunk and returns the accepted samples;
// audio beyond the turn cap is discarded
func (p *Peer) appendAudio(data []byte) []int16 {
	pcm := audio.PCM16FromBytes(data)
	room := maxTurnSamples - len(p.pcm)
	if room <= 0 {
		return nil
	}
	if len(pcm) > room {
		pcm = pcm[:room]
	}
	p.pcm = append(p.pcm, pcm...)
	return pcm
}

// takeTurn returns the buffered turn audio and clears it
func (p *Peer) takeTurn() []int16 {
	pcm := p.pcm
	p.pcm = nil
	return pcm
}

// dropTranscriber abandons the transcriber of the current turn
func (p *Peer) dropTranscriber() {
	if p.stt != nil {
		p.stt.Close()
	}
	p.stt = nil
	p.sttDown = false
}
