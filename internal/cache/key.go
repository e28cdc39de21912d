package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// 结构化结果缓存键前缀
const structureResultPrefix = "structure_result"

// StructureResultKey 生成结构化结果的缓存键
// 基于输入内容和引擎配置的哈希，相同输入和配置命中同一结果
func StructureResultKey(pages interface{}, options interface{}) (string, error) {
	contentHash, err := hashJSON(pages)
	if err != nil {
		return "", err
	}

	optionsHash, err := hashJSON(options)
	if err != nil {
		return "", err
	}

	return GenerateCacheKey(structureResultPrefix, contentHash, optionsHash), nil
}

// hashJSON 计算值JSON序列化后的sha256哈希
func hashJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
