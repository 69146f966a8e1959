// Package config loads the storefront configuration from the environment and a YAML store profile.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	ErrMissingProjectUUID = errors.New("project_uuid is required")
	ErrMissingAPIURL      = errors.New("api_url is required")
	ErrUnsupportedCountry = errors.New("store country is not in supported_countries")
	ErrInvalidMode        = errors.New("mode must be shop or catalog")
	ErrInvalidBusiness    = errors.New("business_type must be physical or service")
)

type Country struct {
	Name     string `yaml:"name" json:"name"`
	DialCode string `yaml:"dial_code" json:"dial_code"`
}

// Store is the static per-deployment store profile.
type Store struct {
	ProjectUUID            string              `yaml:"project_uuid"`
	APIURL                 string              `yaml:"api_url"`
	StripePublicKey        string              `yaml:"stripe_public_key"`
	Name                   string              `yaml:"store_name"`
	Country                string              `yaml:"country"`
	RawWhatsApp            string              `yaml:"raw_whatsapp"`
	Mode                   domain.StoreMode    `yaml:"mode"`
	BusinessType           domain.BusinessType `yaml:"business_type"`
	AllowedZipCodes        []string            `yaml:"allowed_zip_codes"`
	DefaultCurrency        string              `yaml:"default_currency"`
	PhoneDigits            int                 `yaml:"phone_digits"`
	RequireShippingAddress bool                `yaml:"require_shipping_address"`
	EnforceSingleCurrency  bool                `yaml:"enforce_single_currency"`
	CartStorageKey         string              `yaml:"cart_storage_key"`
	SupportedCountries     map[string]Country  `yaml:"supported_countries"`
}

// FullWhatsApp is the store country's dial code followed by the local number.
func (s Store) FullWhatsApp() string {
	c := s.SupportedCountries[strings.ToUpper(s.Country)]
	return c.DialCode + s.RawWhatsApp
}

type Config struct {
	Store Store

	HTTPPort      string
	LogLevel      string
	CartStore     string
	CartDBPath    string
	MongoURI      string
	MongoDBName   string
	PostalCache   string
	RedisAddr     string
	RedisPassword string
	PostalAPIURL  string
	KafkaBrokers  []string
	KafkaTopic    string
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Load reads .env (outside production), the YAML profile and env overrides, then validates.
func Load() (*Config, error) {
	if os.Getenv("ENV") != "production" {
		_ = godotenv.Load()
	}

	store, err := LoadStore(getEnv("STORE_PROFILE", "store.yaml"))
	if err != nil {
		return nil, err
	}
	store.ProjectUUID = getEnv("PROJECT_UUID", store.ProjectUUID)
	store.APIURL = getEnv("API_URL", store.APIURL)

	cfg := &Config{
		Store:         *store,
		HTTPPort:      getEnv("HTTP_PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		CartStore:     getEnv("CART_STORE", "sqlite"),
		CartDBPath:    getEnv("CART_DB_PATH", "storefront.db"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:   getEnv("MONGO_DB_NAME", "storefront"),
		PostalCache:   getEnv("POSTAL_CACHE", "memory"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		PostalAPIURL:  getEnv("POSTAL_API_URL", "https://api.zippopotam.us"),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "storefront-orders"),
	}
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if err := cfg.Store.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadStore parses a store profile and fills defaults. A missing file yields the defaults.
func LoadStore(path string) (*Store, error) {
	s := &Store{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read store profile %q: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("parse store profile %q: %w", path, err)
		}
	}
	s.applyDefaults()
	return s, nil
}

func (s *Store) applyDefaults() {
	if s.Mode == "" {
		s.Mode = domain.ModeShop
	}
	if s.BusinessType == "" {
		s.BusinessType = domain.BusinessPhysical
	}
	if s.DefaultCurrency == "" {
		s.DefaultCurrency = "mxn"
	}
	if s.PhoneDigits <= 0 {
		s.PhoneDigits = 10
	}
	if s.CartStorageKey == "" {
		s.CartStorageKey = "metritrak_cart"
	}
	if s.Name == "" {
		s.Name = "Storefront"
	}
	if len(s.SupportedCountries) == 0 {
		s.SupportedCountries = DefaultCountries()
	}
	s.Country = strings.ToUpper(s.Country)
	if s.Country == "" {
		s.Country = "MX"
	}
}

func (s Store) Validate() error {
	if s.ProjectUUID == "" {
		return ErrMissingProjectUUID
	}
	if s.APIURL == "" {
		return ErrMissingAPIURL
	}
	if _, ok := s.SupportedCountries[s.Country]; !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedCountry, s.Country)
	}
	if s.Mode != domain.ModeShop && s.Mode != domain.ModeCatalog {
		return fmt.Errorf("%w: %q", ErrInvalidMode, s.Mode)
	}
	if s.BusinessType != domain.BusinessPhysical && s.BusinessType != domain.BusinessService {
		return fmt.Errorf("%w: %q", ErrInvalidBusiness, s.BusinessType)
	}
	return nil
}

func DefaultCountries() map[string]Country {
	return map[string]Country{
		"MX": {Name: "México", DialCode: "521"},
		"CR": {Name: "Costa Rica", DialCode: "506"},
		"CO": {Name: "Colombia", DialCode: "57"},
		"PE": {Name: "Perú", DialCode: "51"},
		"CL": {Name: "Chile", DialCode: "56"},
		"ES": {Name: "España", DialCode: "34"},
		"US": {Name: "Estados Unidos", DialCode: "1"},
	}
}
