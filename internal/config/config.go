package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper" // 导入 Viper
)

// Config 结构体包含所有应用的配置
type Config struct {
	Server        ServerConfig        `mapstructure:"server"` // `mapstructure` 标签用于Viper绑定结构体
	MySQL         MySQLConfig         `mapstructure:"mysql"`
	Redis         RedisConfig         `mapstructure:"redis"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	AliyunOSS     AliyunOSSConfig     `mapstructure:"aliyun_oss"`
	S3            S3Config            `mapstructure:"s3"`
	Token         TokenConfig         `mapstructure:"token"`
	Chunk         ChunkConfig         `mapstructure:"chunk"`
	Client        ClientConfig        `mapstructure:"client"`
	Storage       StorageConfig       `mapstructure:"storageconfig"`
	Log           LogConfig           `mapstructure:"log"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// MySQLConfig 数据库配置
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MinIOConfig MinIO配置
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

type AliyunOSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"` // 例如: oss-cn-hangzhou.aliyuncs.com
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"` // OSS SDK 默认是HTTPS，但为了明确
}

// S3Config 配置了第三种 BlobStore 后端（aws-sdk-go-v2）
type S3Config struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"` // 非空时用于兼容 S3 的自建存储
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
}

// TokenConfig 控制 UploadToken 的签发（见 internal/protocol/token.go）
type TokenConfig struct {
	SecretKey string        `mapstructure:"secret_key"`
	Issuer    string        `mapstructure:"issuer"`
	ExpiresIn time.Duration `mapstructure:"expires_in"`
}

// ChunkConfig 定义了分片大小的协商范围
type ChunkConfig struct {
	MinSize     int64         `mapstructure:"min_size"`
	MaxSize     int64         `mapstructure:"max_size"`
	InitialSize int64         `mapstructure:"initial_size"`
	TargetTime  time.Duration `mapstructure:"target_time"`
}

// ClientConfig 控制上传引擎的并发与重试策略
type ClientConfig struct {
	Concurrency  int           `mapstructure:"concurrency"`
	RetryCount   int           `mapstructure:"retry_count"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
}

type StorageConfig struct {
	LocalBasePath      string `mapstructure:"local_base_path"`
	Type               string `mapstructure:"type"`
	PresignedURLExpiry int    `mapstructure:"presigned_url_expiry"` // 预签名URL有效期（分钟）
}

// zap日志配置
type LogConfig struct {
	OutputPath string `mapstructure:"output_path"`
	ErrorPath  string `mapstructure:"error_path"`
	Level      string `mapstructure:"level"`
}

// ElasticsearchConfig 定义 Elasticsearch 连接配置，供统计插件的 ES Sink 使用
type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
	Enabled   bool     `mapstructure:"enabled"`
}

var AppConfig *Config // 全局应用配置实例

// LoadConfig 加载配置
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")           // 配置文件名 (不带扩展名)
	viper.SetConfigType("yaml")             // 配置文件类型
	viper.AddConfigPath(".")                // 在当前目录查找配置文件
	viper.AddConfigPath("./configs")        // 也可以添加其他路径，例如 ./configs/
	viper.AddConfigPath("/etc/chunkvault/") // 生产环境常见路径

	// 读取环境变量，环境变量名将自动转换为大写，并用下划线替换点
	// 例如：SERVER.PORT 对应环境变量 SERVER_PORT
	viper.SetEnvPrefix("CHUNKVAULT") // 设置环境变量前缀，例如 CHUNKVAULT_SERVER_PORT
	viper.AutomaticEnv()             // 自动绑定环境变量

	// 替换环境变量中的点为下划线，例如 "SERVER.PORT" 对应 "SERVER_PORT"
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	// 1. 设置默认值 (配置文件和环境变量都没有时生效)
	viper.SetDefault("chunk.min_size", 256*1024)
	viper.SetDefault("chunk.max_size", 10*1024*1024)
	viper.SetDefault("chunk.initial_size", 1024*1024)
	viper.SetDefault("chunk.target_time", 3*time.Second)
	viper.SetDefault("client.concurrency", 3)
	viper.SetDefault("client.retry_count", 3)
	viper.SetDefault("client.retry_delay", time.Second)
	viper.SetDefault("token.expires_in", 24*time.Hour)

	// 2. 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// 配置文件未找到，但这不是致命错误，因为我们可以依赖环境变量或默认值
			log.Println("Warning: config file not found, using environment variables or default values.")
		} else {
			// 其他读取错误，例如配置文件格式错误
			log.Fatalf("Fatal error reading config file: %s \n", err)
			return nil, err
		}
	}

	// 3. 将读取到的配置绑定到结构体
	AppConfig = &Config{}
	if err := viper.Unmarshal(AppConfig); err != nil {
		log.Fatalf("Fatal error unmarshaling config: %s \n", err)
		return nil, err
	}

	log.Println("Configuration loaded successfully with Viper.")
	return AppConfig, nil
}
