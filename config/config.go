// Package config loads the bot configuration file and watches it for
// changes, so long-running bots can pick up presence or intent edits
// without a restart.
package config

import (
	"fmt"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/radovskyb/watcher"

	"github.com/raxon/discordeno/discord"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Bot is the on-disk configuration of a bot process.
type Bot struct {
	Token       string          `json:"token"`
	Intents     discord.Intents `json:"intents"`
	TotalShards int             `json:"totalShards"`
	APIVersion  int             `json:"apiVersion"`
	Compress    bool            `json:"compress"`
	Status      string          `json:"status"`
}

// Load reads and parses path, applying defaults for missing fields.
func Load(path string) (*Bot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	var bot Bot
	if err := json.Unmarshal(data, &bot); err != nil {
		return nil, fmt.Errorf("config: could not parse %s: %w", path, err)
	}
	bot.applyDefaults()
	return &bot, nil
}

func (b *Bot) applyDefaults() {
	if b.APIVersion == 0 {
		b.APIVersion = 10
	}
	if b.TotalShards == 0 {
		b.TotalShards = 1
	}
	if b.Status == "" {
		b.Status = "online"
	}
}

// Watch reloads path on every change and hands the result to onChange.
// Parse failures keep the previous config and are reported to onError when
// set. The returned stop function ends the watch.
func Watch(path string, interval time.Duration, onChange func(*Bot), onError func(error)) (func(), error) {
	w := watcher.New()

	go func() {
		for {
			select {
			case <-w.Event:
				bot, err := Load(path)
				if err != nil {
					if onError != nil {
						onError(err)
					}
					continue
				}
				onChange(bot)
			case err := <-w.Error:
				if onError != nil {
					onError(err)
				}
			case <-w.Closed:
				return
			}
		}
	}()

	if err := w.Add(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("config: could not watch %s: %w", path, err)
	}
	go func() {
		if err := w.Start(interval); err != nil && onError != nil {
			onError(err)
		}
	}()

	return w.Close, nil
}
