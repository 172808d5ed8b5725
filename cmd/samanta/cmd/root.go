package cmd

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mfenderov/samanta/internal/config"
)

var (
	cfgFile string
	envFile string
	verbose bool
	cfg     config.Config
)

// GetConfig returns the loaded configuration.
func GetConfig() config.Config {
	return cfg
}

var rootCmd = &cobra.Command{
	Use:   "samanta",
	Short: "Samanta: a conversational news assistant",
	Long: `Samanta fetches news articles, keeps them in a CSV article store,
indexes their text as embedded chunks, and answers questions about them
in Spanish with a retrieval-augmented chat model.

Commands:
  add     Fetch an article by URL and append it to the article store
  index   Rebuild the chunk vector store from the article store
  search  Show the chunks retrieved for a query
  chat    Start an interactive chat session in the terminal
  serve   Start the HTTP API
  mcp     Start the MCP server on stdio`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initLogger, initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

func initLogger() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

func initConfig() {
	// Existing environment variables win over the dotenv file.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load env file", "path", envFile, "error", err)
	}

	cfg = config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/samanta")
		viper.AddConfigPath(".")
	}

	// SAMANTA_VECTOR_STORE_BACKEND -> vector_store.backend
	viper.SetEnvPrefix("SAMANTA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.BindEnv("openai.api_key", "OPENAI_API_KEY", "SAMANTA_OPENAI_API_KEY")
	viper.BindEnv("openai.base_url", "OPENAI_BASE_URL", "SAMANTA_OPENAI_BASE_URL")
	viper.BindEnv("openai.socket_path", "SAMANTA_OPENAI_SOCKET_PATH")
	viper.BindEnv("llm.model", "SAMANTA_LLM_MODEL")
	viper.BindEnv("llm.temperature", "SAMANTA_LLM_TEMPERATURE")
	viper.BindEnv("embeddings.model", "SAMANTA_EMBEDDINGS_MODEL")
	viper.BindEnv("embeddings.rate_limit", "SAMANTA_EMBEDDINGS_RATE_LIMIT")
	viper.BindEnv("store.backend", "SAMANTA_STORE_BACKEND")
	viper.BindEnv("store.path", "SAMANTA_STORE_PATH")
	viper.BindEnv("store.s3.endpoint", "SAMANTA_STORE_S3_ENDPOINT")
	viper.BindEnv("store.s3.bucket", "SAMANTA_STORE_S3_BUCKET")
	viper.BindEnv("store.s3.access_key_id", "SAMANTA_STORE_S3_ACCESS_KEY_ID")
	viper.BindEnv("store.s3.secret_access_key", "SAMANTA_STORE_S3_SECRET_ACCESS_KEY")
	viper.BindEnv("vector_store.backend", "SAMANTA_VECTOR_STORE_BACKEND")
	viper.BindEnv("vector_store.path", "SAMANTA_VECTOR_STORE_PATH")
	viper.BindEnv("vector_store.top_k", "SAMANTA_VECTOR_STORE_TOP_K")
	viper.BindEnv("vector_store.hybrid", "SAMANTA_VECTOR_STORE_HYBRID")
	viper.BindEnv("vector_store.qdrant.address", "SAMANTA_VECTOR_STORE_QDRANT_ADDRESS")
	viper.BindEnv("sessions.backend", "SAMANTA_SESSIONS_BACKEND")
	viper.BindEnv("sessions.redis.addr", "SAMANTA_SESSIONS_REDIS_ADDR")
	viper.BindEnv("server.addr", "SAMANTA_SERVER_ADDR")
	viper.BindEnv("server.reindex_on_add", "SAMANTA_SERVER_REINDEX_ON_ADD")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("config file error", "error", err)
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Warn("failed to parse config", "error", err)
	}

	// Addresses as comma-separated string from env
	if addrs := os.Getenv("SAMANTA_VECTOR_STORE_ELASTICSEARCH_ADDRESSES"); addrs != "" {
		cfg.VectorStore.Elasticsearch.Addresses = strings.Split(addrs, ",")
	}
}
