package dynamo

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// compositeKey builds a DynamoDB primary key with two string attributes (PK + SK).
func compositeKey(pkName, pkValue, skName, skValue string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		pkName: &types.AttributeValueMemberS{Value: pkValue},
		skName: &types.AttributeValueMemberS{Value: skValue},
	}
}

// ttlSeconds rounds a millisecond expiry up to the Unix second DynamoDB TTL expects.
func ttlSeconds(expiresAtMillis int64) int64 {
	return (expiresAtMillis + 999) / 1000
}
