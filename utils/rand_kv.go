package utils

import (
	"fmt"
	"math/rand"
	"time"
)

var (
	randStr = rand.New(rand.NewSource(time.Now().Unix()))
	letters = []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
)

// GetTestKey builds a deterministic test key from i.
func GetTestKey(i int) string {
	return fmt.Sprintf("casklog-key-%09d", i)
}

// RandomValue builds a random text value of n letters.
func RandomValue(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[randStr.Intn(len(letters))]
	}
	return string(b)
}
