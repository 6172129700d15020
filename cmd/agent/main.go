// The agent is a headless room member: it joins a session over the same
// client engine the UI uses, mirrors every delivered snapshot into a local
// bbolt file, and announces itself on the LAN over mDNS so other Crotex
// agents can find it. Useful as an always-on backup peer for a room.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/madshubh27/Crotex/client"
	"github.com/madshubh27/Crotex/document"
)

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	relayURL := env("RELAY_URL", "ws://localhost:8080/ws")
	room := os.Getenv("ROOM")
	if room == "" {
		log.Fatal("ROOM must be set to the session id to mirror")
	}
	dataFile := env("DATA_FILE", "crotex-agent.db")
	statusAddr := env("STATUS_ADDR", ":8082")

	local, err := client.OpenLocalStore(dataFile)
	if err != nil {
		log.Fatalf("Failed to open local store: %v", err)
	}
	defer local.Close()

	seed, err := local.Load(room)
	if errors.Is(err, client.ErrNoLocalCopy) {
		seed = nil
	} else if err != nil {
		log.Fatalf("Failed to load local copy: %v", err)
	} else {
		log.Printf("Loaded local copy with %d elements", len(seed))
	}

	session := client.NewSession(relayURL)
	emitter := client.NewEmitter(session, 0)
	history := client.NewRoomHistory(seed, room, emitter)

	session.OnDeliver = func(deliveredRoom string, elements document.Snapshot) {
		if deliveredRoom != "" && deliveredRoom != room {
			return
		}
		emitter.ApplyRemote(history, elements, room)
		if err := local.Save(room, elements); err != nil {
			log.Printf("Failed to save local copy: %v", err)
		}
		log.Printf("Synced %d elements for room %s", len(elements), room)
	}
	session.OnRoomUsers = func(_ string, count int) {
		log.Printf("Room %s now has %d members", room, count)
	}
	session.OnConnect = func() {
		log.Println("Reconnected to relay.")
	}
	session.OnDisconnect = func() {
		log.Println("Disconnected from relay, editing continues locally.")
	}

	if err := session.Connect(); err != nil {
		log.Fatalf("Failed to connect to relay at %s: %v", relayURL, err)
	}
	defer session.Close()
	if err := session.Join(room); err != nil {
		log.Fatalf("Failed to join room %s: %v", room, err)
	}
	log.Printf("Crotex agent mirroring room %s via %s", room, relayURL)

	// Status endpoint, also the port we announce over mDNS.
	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "room=%s elements=%d connected=%t\n",
			room, len(history.Current()), session.Connected())
	})
	go func() {
		if err := http.ListenAndServe(statusAddr, nil); err != nil {
			log.Printf("Status endpoint failed: %v", err)
		}
	}()

	go announce(statusAddr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	if err := local.Save(room, history.Current()); err != nil {
		log.Printf("Final save failed: %v", err)
	}
	log.Println("Agent stopped.")
}

// announce registers the agent on mDNS and logs any peers it discovers.
func announce(statusAddr string) {
	port := 8082
	fmt.Sscanf(statusAddr, ":%d", &port)

	host, _ := os.Hostname()
	srv, err := zeroconf.Register(
		fmt.Sprintf("Crotex-%s", host),
		"_crotex._tcp",
		"local.",
		port,
		[]string{"txtv=0"},
		nil,
	)
	if err != nil {
		log.Printf("Failed to register mDNS service: %v", err)
		return
	}
	defer srv.Shutdown()
	log.Printf("mDNS service registered on port %d", port)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		log.Printf("Failed to initialize mDNS resolver: %v", err)
		return
	}
	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		for entry := range entries {
			log.Printf("mDNS discovered peer: %s on port %d", entry.Instance, entry.Port)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := resolver.Browse(ctx, "_crotex._tcp", "local.", entries); err != nil {
		log.Printf("Failed to browse for mDNS services: %v", err)
		return
	}
	<-ctx.Done()
}
