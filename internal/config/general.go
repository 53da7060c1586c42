package config

// GeneralConfig holds identity settings. PrivateKey wins over IdentityFile.
type GeneralConfig struct {
	IdentityFile string `mapstructure:"IDENTITY_FILE" json:"identity_file" validate:"omitempty"`
	PrivateKey   string `mapstructure:"PRIVATE_KEY"   json:"-"             validate:"omitempty,hexkey"`
}
