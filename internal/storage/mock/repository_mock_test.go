package mock

import (
	"gitlab.com/tapfield/rfid-tag-logger/internal/storage"
)

var (
	_ storage.TagEventRepo   = (*TagEventRepoMock)(nil)
	_ storage.WebhookRepo    = (*WebhookRepoMock)(nil)
	_ storage.WebhookLogRepo = (*WebhookLogRepoMock)(nil)
	_ storage.RetryQueueRepo = (*RetryQueueRepoMock)(nil)
	_ storage.SettingRepo    = (*SettingRepoMock)(nil)
	_ storage.Pinger         = (*PingerMock)(nil)
)
