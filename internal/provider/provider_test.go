package provider

import "testing"

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "nothing configured", config: Config{}, wantErr: true},
		{name: "api key", config: Config{APIKey: "sk-test"}},
		{name: "base url only", config: Config{BaseURL: "http://localhost:1234/v1/"}},
		{name: "socket only", config: Config{SocketPath: "/tmp/test.sock"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewClient() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
