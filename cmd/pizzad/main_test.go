package main

import (
	"testing"

	"github.com/sami-chanane/thesis-pizza-app/cmd/pizzad/config"
)

func TestParseChannelMapping(t *testing.T) {
	config := &config.Config{
		Notifications: config.Notifications{
			ChannelMapping: "pizza-team/pizza-app=deliveries,pizza-team/pizza-infra=platform",
		},
	}

	testChannelMap := parseChannelMap(config)

	assertEqual(t, testChannelMap["pizza-team/pizza-app"], "deliveries")
	assertEqual(t, testChannelMap["pizza-team/pizza-infra"], "platform")
}

func assertEqual(t *testing.T, a interface{}, b interface{}) {
	if a != b {
		t.Fatalf("%s != %s", a, b)
	}
}
