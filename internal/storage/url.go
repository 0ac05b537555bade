package storage

// ObjectURL returns the public virtual-hosted address of key in bucket. The
// key is inserted verbatim.
func ObjectURL(bucket, region, key string) string {
	return "https://" + bucket + ".s3." + region + ".amazonaws.com/" + key
}
