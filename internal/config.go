package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

type Config struct {
	Host                 string        `env:"HOST"`
	Port                 int           `env:"PORT,default=3000"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	Codec                string        `env:"CODEC,default=xor"`
	CodecKey             string        `env:"CODEC_KEY,default=secret-key-123"`
	IncludePlaintext     bool          `env:"INCLUDE_PLAINTEXT,default=true"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	MaxUploadBytes       int64         `env:"MAX_UPLOAD_BYTES,default=10485760"`
	BlobBackend          string        `env:"BLOB_BACKEND,default=disk"`
	UploadDir            string        `env:"UPLOAD_DIR,default=uploads"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,default=data/blobs"`
	S3Bucket             string        `env:"S3_BUCKET"`
	S3Region             string        `env:"S3_REGION,default=us-east-1"`
	S3Endpoint           string        `env:"S3_ENDPOINT"`
	S3AccessKey          string        `env:"S3_ACCESS_KEY"`
	S3SecretKey          string        `env:"S3_SECRET_KEY"`
	CensoredWords        string        `env:"CENSORED_WORDS"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`
	StaticDir            string        `env:"STATIC_DIR,default=public"`
	HeartbeatInterval    time.Duration `env:"HEARTBEAT_INTERVAL,default=30s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s"`
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Words splits CENSORED_WORDS, dropping blanks.
func (c Config) Words() []string {
	return lo.FilterMap(strings.Split(c.CensoredWords, ","), func(w string, _ int) (string, bool) {
		w = strings.TrimSpace(w)
		return w, w != ""
	})
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
