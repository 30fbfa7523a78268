// Package minio stores index artifacts in a MinIO bucket, or any other
// S3-compatible endpoint the MinIO client can reach.
//
//	client, _ := minio.New("localhost:9000", &minio.Options{
//	    Creds: credentials.NewStaticV4(accessKey, secretKey, ""),
//	})
//	store := minioblob.NewStore(client, "vectors", "prod")
//
//	_ = ix.SaveTo(ctx, store, "docs")
//	loaded, _ := vecgraph.LoadFrom(ctx, store, "docs", 384, distance.MetricCosine)
package minio
