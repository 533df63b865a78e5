// Bot joins a room over the public API, plays the game over WebSocket, and
// exits when the match finishes. Handy for load tests and for filling out
// a team during development.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mathrumble/mathrumble/clients/roomsclient"
	"github.com/mathrumble/mathrumble/internal/client"
	"github.com/mathrumble/mathrumble/internal/questions"
	"github.com/mathrumble/mathrumble/internal/rooms"
)

func main() {
	var (
		serverURL  = flag.String("server", "http://localhost:8080", "game server base URL")
		name       = flag.String("name", fmt.Sprintf("bot-%04d", rand.Intn(10000)), "bot username")
		roomCode   = flag.String("room", "", "room code to join; empty creates a new room")
		difficulty = flag.String("difficulty", "easy", "difficulty for a created room")
		team       = flag.String("team", "", "preferred team (A or B); empty auto-assigns")
		start      = flag.Bool("start", false, "start the game after connecting")
		accuracy   = flag.Float64("accuracy", 1.0, "fraction of questions answered correctly")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	api := roomsclient.New(*serverURL)

	var join rooms.JoinRoomResponse
	var err error
	if *roomCode == "" {
		join, err = api.CreateRoom(rooms.CreateRoomRequest{
			Username:   *name,
			Difficulty: *difficulty,
		})
	} else {
		join, err = api.JoinRoom(*roomCode, rooms.JoinRoomRequest{
			Username: *name,
			Team:     *team,
		})
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed to enter room")
	}
	log.Info().
		Str("room_code", join.RoomCode).
		Str("team", join.Team).
		Str("player_id", join.PlayerID).
		Msg("joined room")

	store := client.NewStore()
	store.SetConnectionInfo(client.Identity{
		RoomID:   join.RoomID,
		RoomCode: join.RoomCode,
		PlayerID: join.PlayerID,
		UserID:   join.UserID,
		Username: *name,
		Team:     client.Team(join.Team),
	})

	gc := client.New(wsBaseURL(*serverURL), store, log.Logger)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = gc.Connect(ctx)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect")
	}
	defer gc.Disconnect()

	if *start {
		gc.SendStartGame()
	}

	states, unsubscribe := store.Subscribe()
	defer unsubscribe()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	lastQuestionID := ""
	for {
		select {
		case sig := <-sigChan:
			log.Info().Str("signal", sig.String()).Msg("shutting down")
			return
		case state, ok := <-states:
			if !ok {
				log.Warn().Msg("state stream closed")
				return
			}
			if state.Status == client.StatusFinished {
				printResult(state)
				return
			}
			q := state.CurrentQuestion
			if state.Status != client.StatusInProgress || q == nil || q.ID == lastQuestionID {
				continue
			}
			lastQuestionID = q.ID

			answer, err := questions.Solve(q.Question)
			if err != nil {
				log.Warn().Err(err).Str("question", q.Question).Msg("could not solve question")
				continue
			}
			if rng.Float64() >= *accuracy {
				answer += 1 // deliberate miss
			}
			gc.SendAnswer(q.ID, answer)
		}
	}
}

func printResult(state client.GameState) {
	result := "draw"
	switch state.Winner {
	case string(state.Team):
		result = "we won"
	case "":
	default:
		result = "we lost"
	}
	log.Info().
		Str("winner", state.Winner).
		Int("team_a_score", state.TeamAScore).
		Int("team_b_score", state.TeamBScore).
		Int("rope_position", state.RopePosition).
		Msg("game over: " + result)
}

// wsBaseURL converts the HTTP base URL into its WebSocket counterpart.
func wsBaseURL(httpURL string) string {
	switch {
	case strings.HasPrefix(httpURL, "https://"):
		return "wss://" + strings.TrimPrefix(httpURL, "https://")
	case strings.HasPrefix(httpURL, "http://"):
		return "ws://" + strings.TrimPrefix(httpURL, "http://")
	default:
		return httpURL
	}
}
