package cache

// Driver identifies cache backend.
type Driver string

const (
	DriverNull   Driver = "null"
	DriverMemory Driver = "memory"
	DriverRedis  Driver = "redis"
	DriverSQL    Driver = "sql"
	DriverDynamo Driver = "dynamodb"
	DriverNATS   Driver = "nats"
)
