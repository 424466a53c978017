/*
Package s3 implements the object-store client against Amazon S3 and
S3-compatible services (MinIO, Ceph RGW, LocalStack).

Reads use ranged GetObject calls so the filesystem can pull exactly the
bytes a read needs; whole-object reads go through the transfer manager's
concurrent downloader. Uploads prefer the CargoShip transporter for its
adaptive multipart tuning and fall back to the transfer manager when
CargoShip is disabled or fails.

Endpoint, path-style addressing, and static credentials are configurable
so the same driver serves AWS and self-hosted deployments.
*/
package s3
