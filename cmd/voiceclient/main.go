// Command voiceclient is a development client for the voice session
// server. It starts a session over HTTP, attaches to the websocket,
// optionally streams a WAV file as microphone audio, and saves
// synthesized audio responses to disk.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"
)

type startSessionResponse struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	SpokenResponse string `json:"spoken_response"`
	Token          string `json:"token"`
}

func main() {
	host := flag.String("host", "localhost:8080", "server host:port")
	audioPath := flag.String("audio", "", "WAV file to stream as microphone input")
	saveDir := flag.String("save", "audio_responses", "directory for synthesized audio")
	flag.Parse()

	token, welcome, err := startSession(*host)
	if err != nil {
		log.Fatal("Failed to start voice session:", err)
	}
	log.Printf("Session started: %s", welcome)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{Scheme: "ws", Host: *host, Path: "/ws"}
	log.Printf("connecting to %s", u.String())

	headers := http.Header{}
	headers.Add("Authorization", "Bearer "+token)

	c, _, err := websocket.DefaultDialer.Dial(u.String(), headers)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer c.Close()

	done := make(chan struct{})
	go handleIncomingMessage(c, *saveDir, done)

	if *audioPath != "" {
		streamAudioFile(c, *audioPath)
	}

	select {
	case <-done:
		return
	case <-interrupt:
		log.Println("interrupt")
		err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if err != nil {
			log.Println("write close:", err)
			return
		}
		select {
		case <-done:
		case <-time.After(time.Second):
		}
		return
	}
}

func startSession(host string) (token, welcome string, err error) {
	resp, err := http.Post("http://"+host+"/start-voice-session", "application/json", bytes.NewReader(nil))
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("start failed: %s", string(body))
	}

	var started startSessionResponse
	if err := json.Unmarshal(body, &started); err != nil {
		return "", "", err
	}
	return started.Token, started.SpokenResponse, nil
}

// streamAudioFile sends the file as binary frames, pacing them so the
// server-side recognizer sees something close to realtime audio.
func streamAudioFile(c *websocket.Conn, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("Error reading audio file: %v", err)
		return
	}
	log.Printf("Read audio file: %s (%d bytes)", path, len(data))

	chunkSize := 1024
	totalChunks := (len(data) + chunkSize - 1) / chunkSize
	log.Printf("Sending %d audio chunks (chunk size: %d bytes)", totalChunks, chunkSize)

	for i := 0; i < totalChunks; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(data) {
			end = len(data)
		}
		if err := c.WriteMessage(websocket.BinaryMessage, data[start:end]); err != nil {
			log.Printf("Error sending audio chunk %d: %v", i, err)
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	log.Printf("Finished sending audio chunks")
}

func handleIncomingMessage(c *websocket.Conn, saveDir string, done chan struct{}) {
	defer close(done)
	var audioFile *os.File
	var speakingStart time.Time
	var audioChunkCount int

	for {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			log.Println("read:", err)
			return
		}

		if messageType == websocket.BinaryMessage {
			audioChunkCount++
			if audioFile != nil {
				if _, err := audioFile.Write(message); err != nil {
					log.Printf("Error writing audio chunk to file: %v", err)
				}
			}
			continue
		}

		var msg map[string]interface{}
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Println("unmarshal error:", err)
			continue
		}

		msgType, _ := msg["type"].(string)
		switch msgType {
		case "session_status":
			log.Printf("Session %v: %v", msg["state"], msg["status"])
		case "message":
			if m, ok := msg["message"].(map[string]interface{}); ok {
				log.Printf("[%v] %v", m["role"], m["text"])
			}
		case "speaking_start":
			speakingStart = time.Now()
			audioChunkCount = 0
			if err := os.MkdirAll(saveDir, 0755); err != nil {
				log.Printf("Error creating audio directory: %v", err)
				return
			}
			name := filepath.Join(saveDir, fmt.Sprintf("%d.pcm", time.Now().Unix()))
			audioFile, err = os.Create(name)
			if err != nil {
				log.Printf("Error creating audio file: %v", err)
				return
			}
			log.Printf("Speaking started, saving audio to %s", name)
		case "speaking_end":
			log.Printf("Speaking ended - duration: %v, chunks: %d, interrupted: %v",
				time.Since(speakingStart), audioChunkCount, msg["interrupted"])
			if audioFile != nil {
				audioFile.Close()
				audioFile = nil
			}
		case "error":
			log.Printf("Server error %v: %v", msg["code"], msg["message"])
		default:
			log.Printf("Received unknown message type: %s", msgType)
		}
	}
}
