// Package config wires viper to cobra flags. Precedence: flag > env >
// default, env vars prefixed QUICKCHAT_ (e.g. QUICKCHAT_LISTEN_ADDR).
package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	KeyListenAddr    = "listen_addr"
	KeyStaticDir     = "static_dir"
	KeyAllowedOrigin = "allowed_origin"
	KeyRingTimeout   = "ring_timeout"

	KeyServerURL   = "server_url"
	KeyDisplayName = "display_name"
	KeyRoom        = "room"
	KeySTUNServer  = "stun_server"
)

type Server struct {
	ListenAddr    string
	StaticDir     string
	AllowedOrigin string
	RingTimeout   time.Duration
}

type Client struct {
	ServerURL   string
	DisplayName string
	Room        string
	STUNServer  string
}

func init() {
	viper.SetEnvPrefix("quickchat")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func BindServerFlags(fs *pflag.FlagSet) {
	fs.String("addr", ":8080", "listen address")
	fs.String("static", "./static", "static files directory (empty disables)")
	fs.String("origin", "*", "allowed websocket origin (* allows any)")
	fs.Duration("ring-timeout", 60*time.Second, "how long a callee may ring unanswered (0 disables)")

	viper.BindPFlag(KeyListenAddr, fs.Lookup("addr"))
	viper.BindPFlag(KeyStaticDir, fs.Lookup("static"))
	viper.BindPFlag(KeyAllowedOrigin, fs.Lookup("origin"))
	viper.BindPFlag(KeyRingTimeout, fs.Lookup("ring-timeout"))
}

func ServerConfig() Server {
	return Server{
		ListenAddr:    viper.GetString(KeyListenAddr),
		StaticDir:     viper.GetString(KeyStaticDir),
		AllowedOrigin: viper.GetString(KeyAllowedOrigin),
		RingTimeout:   viper.GetDuration(KeyRingTimeout),
	}
}

func BindClientFlags(fs *pflag.FlagSet) {
	fs.String("server", "ws://localhost:8080/ws", "signaling server websocket URL")
	fs.String("name", "", "display name")
	fs.String("room", "", "room to join")
	fs.String("stun", "stun:stun.l.google.com:19302", "STUN server for call negotiation")

	viper.BindPFlag(KeyServerURL, fs.Lookup("server"))
	viper.BindPFlag(KeyDisplayName, fs.Lookup("name"))
	viper.BindPFlag(KeyRoom, fs.Lookup("room"))
	viper.BindPFlag(KeySTUNServer, fs.Lookup("stun"))
}

func ClientConfig() Client {
	return Client{
		ServerURL:   viper.GetString(KeyServerURL),
		DisplayName: viper.GetString(KeyDisplayName),
		Room:        viper.GetString(KeyRoom),
		STUNServer:  viper.GetString(KeySTUNServer),
	}
}
