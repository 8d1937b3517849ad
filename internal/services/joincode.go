package services

import (
	"fmt"
	"math/rand/v2"
)

// Join codes look like "blue-tiger-42": 16 adjectives x 16 animals x 100
// numbers gives 25,600 codes.
var (
	joinCodeAdjectives = [16]string{
		"blue", "brave", "calm", "clever", "eager", "gentle", "happy", "jolly",
		"kind", "lucky", "quick", "quiet", "red", "silver", "sunny", "witty",
	}
	joinCodeAnimals = [16]string{
		"badger", "bear", "crane", "dolphin", "eagle", "falcon", "fox", "heron",
		"koala", "lynx", "otter", "owl", "panda", "raven", "tiger", "wolf",
	}
)

const maxJoinCodeAttempts = 10

// JoinCodeGenerator mints a candidate join code; uniqueness is checked by the caller.
type JoinCodeGenerator func() string

func RandomJoinCode() string {
	return fmt.Sprintf("%s-%s-%02d",
		joinCodeAdjectives[rand.IntN(len(joinCodeAdjectives))],
		joinCodeAnimals[rand.IntN(len(joinCodeAnimals))],
		rand.IntN(100),
	)
}
