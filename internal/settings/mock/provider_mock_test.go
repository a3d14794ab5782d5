package mock

import (
	"gitlab.com/tapfield/rfid-tag-logger/internal/settings"
)

var _ settings.Provider = (*ProviderMock)(nil)
