package utils

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/production_backend/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

// store instance, obj should be a pointer
func StoreRedis[T any](obj any, id int) error {
	key := GetTypeName[T]() + ":" + fmt.Sprint(id)
	return config.SetRedisObject(key, &obj, GetCacheLifespan())
}

func GetRedis[T any](id int) (*T, bool, error) {
	key := GetTypeName[T]() + ":" + fmt.Sprint(id)
	var obj T
	exists, err := config.GetRedisObject(key, &obj)
	if err != nil || !exists {
		return nil, false, err
	}
	return &obj, true, nil
}

func ClearRedis[T any](id int) error {
	key := GetTypeName[T]() + ":" + fmt.Sprint(id)
	return config.RemoveRedisKey(key)
}
