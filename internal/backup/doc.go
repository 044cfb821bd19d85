// backup creates AMIs from a running EC2 instance and expires the AMIs it
// created earlier.
//
// # Overview
//
// A run is a strictly sequential series of EC2 API calls:
//
//  1. Resolve - find the running instance whose Name tag equals the server
//     name (FindInstance)
//  2. Create - request a new AMI without rebooting the instance (CreateImage)
//  3. Await - poll the new AMI until its snapshots are referenced, or until
//     it is available (AwaitImage)
//  4. Tag - tag the AMI with the server name and each of its snapshots with
//     the generated AMI name (TagImage)
//  5. Sweep - deregister every AMI tagged with the server name that is older
//     than the retention window, deleting its snapshots (Sweeper)
//
// # Naming
//
// AMIs are named "<server>-DDMonYYYY-HH-MM" (UTC), e.g.
// "MyWebServer-15Jan2024-10-30". The AMI's Name tag is the server name, which
// is what the sweep matches on. Snapshots carry the full AMI name so they can
// be traced back to the AMI that owns them.
//
// # Cleanup progress
//
// Deregistering an AMI and deleting its snapshots are independent calls. The
// sweeper records each step in a journal before moving on, and finishes any
// unfinished record at the start of the next sweep. Snapshots of an AMI that
// was deregistered in an earlier, interrupted run are no longer reachable
// through the Name tag filter, so the journal is the only way back to them.
package backup
