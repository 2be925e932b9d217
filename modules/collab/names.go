package collab

import (
	"fmt"
	"math/rand"

	"github.com/jaevor/go-nanoid"
)

var nameAdjectives = []string{
	"Happy", "Clever", "Brave", "Swift", "Calm",
	"Wise", "Bright", "Kind", "Gentle", "Smart",
}

var nameNouns = []string{
	"Panda", "Dolphin", "Eagle", "Lion", "Tiger",
	"Bear", "Wolf", "Fox", "Hawk", "Deer",
}

// GenerateUsername returns a pseudo-random default display name such as
// "SwiftFox42". Names are advisory labels, not identifiers, so collisions
// are fine.
func GenerateUsername() string {
	adjective := nameAdjectives[rand.Intn(len(nameAdjectives))]
	noun := nameNouns[rand.Intn(len(nameNouns))]
	return fmt.Sprintf("%s%s%d", adjective, noun, rand.Intn(1000))
}

const roomIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// newRoomID generates short opaque room ids. Collision probability is
// negligible against the 100-room ceiling; the coordinator still retries on
// the off chance.
var newRoomID = mustRoomIDGenerator()

func mustRoomIDGenerator() func() string {
	gen, err := nanoid.CustomASCII(roomIDAlphabet, RoomIDLength)
	if err != nil {
		panic(fmt.Sprintf("collab: room id generator: %v", err))
	}
	return gen
}
