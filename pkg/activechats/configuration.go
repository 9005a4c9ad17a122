package activechats

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/blaubaer/chat-audio/pkg/common"
)

func NewConfiguration() Configuration {
	return Configuration{
		Store: StoreTypeDefault,
		Redis: RedisConfiguration{
			Address: "localhost:6379",
			Key:     DefaultRedisKey,
		},
	}
}

type Configuration struct {
	Store StoreType          `yaml:"store"`
	File  string             `yaml:"file,omitempty"`
	Redis RedisConfiguration `yaml:"redis,omitempty"`
}

type RedisConfiguration struct {
	Address  string `yaml:"address,omitempty" validate:"omitempty,hostname_port"`
	Password string `yaml:"password,omitempty"`
	Db       int    `yaml:"db,omitempty" validate:"gte=0"`
	Key      string `yaml:"key,omitempty"`
}

func (this *Configuration) SetupConfiguration(using common.FlagHolder) {
	using.Flag("state.store", "Where the active chats are persisted. Possible values: "+AllStoreTypes.String()).
		Envar("CA_STATE_STORE").
		SetValue(&this.Store)
	using.Flag("state.file", "File to persist the active chats to if state.store is file.").
		Envar("CA_STATE_FILE").
		StringVar(&this.File)
	using.Flag("state.redis.address", "Address of the redis server if state.store is redis.").
		Envar("CA_STATE_REDIS_ADDRESS").
		StringVar(&this.Redis.Address)
	using.Flag("state.redis.password", "Password of the redis server if state.store is redis.").
		Envar("CA_STATE_REDIS_PASSWORD").
		StringVar(&this.Redis.Password)
	using.Flag("state.redis.db", "Database of the redis server if state.store is redis.").
		Envar("CA_STATE_REDIS_DB").
		IntVar(&this.Redis.Db)
	using.Flag("state.redis.key", "Key to persist the active chats to if state.store is redis.").
		Envar("CA_STATE_REDIS_KEY").
		StringVar(&this.Redis.Key)
}

// NewStore creates the configured Store. defaultFile is used if no file is
// configured. A nil Store means nothing is persisted.
func (this *Configuration) NewStore(defaultFile string) (Store, error) {
	switch this.Store {
	case StoreTypeNone:
		return nil, nil
	case StoreTypeFile:
		fn := this.File
		if fn == "" {
			fn = defaultFile
		}
		return &FileStore{Filename: fn}, nil
	case StoreTypeRedis:
		return &RedisStore{
			Client: redis.NewClient(&redis.Options{
				Addr:     this.Redis.Address,
				Password: this.Redis.Password,
				DB:       this.Redis.Db,
			}),
			Key: this.Redis.Key,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported store type: %v", this.Store)
	}
}
